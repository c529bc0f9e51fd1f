package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/config"
	"github.com/armatrix/delegate-go/internal/logging"
	"github.com/armatrix/delegate-go/session"
	"github.com/armatrix/delegate-go/subagent"
)

// app holds the state shared by all subcommands.
type app struct {
	configPaths []string
	agentDirs   []string
	storeFlag   string
	logLevel    string
	logFormat   string
	parentID    string
	contextFile string

	settings *config.Settings
	logger   *slog.Logger
	closeLog func() error
	closers  []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "delegate",
		Short:        "Delegate tasks to sub-agents",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	f := root.PersistentFlags()
	f.StringSliceVar(&a.configPaths, "config", nil, "Settings file (JSON or YAML); may be repeated, later files win")
	f.StringSliceVar(&a.agentDirs, "agents-dir", nil, "Directory of agent definition .md files; may be repeated")
	f.StringVar(&a.storeFlag, "store", "", "Sub-session store: memory, file:<dir> or sqlite:<path>")
	f.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&a.parentID, "parent", "", "Parent session id (generated when empty)")
	f.StringVar(&a.contextFile, "context-file", "", "JSON file holding the parent conversation history")

	root.AddCommand(
		newRunCmd(a),
		newResumeCmd(a),
		newAgentsCmd(a),
		newSessionsCmd(a),
		newIDCmd(a),
	)
	return root
}

func (a *app) init() error {
	paths := a.configPaths
	if len(paths) == 0 {
		wd, _ := os.Getwd()
		paths = config.DefaultSettingsPaths(wd)
	}
	s, err := config.LoadSettings(paths...)
	if err != nil {
		return err
	}
	a.settings = s

	level := firstNonEmpty(a.logLevel, s.LogLevel)
	format := firstNonEmpty(a.logFormat, s.LogFormat)
	logger, closer, err := logging.New(level, format, "stderr")
	if err != nil {
		return err
	}
	a.logger = logger
	a.closeLog = closer
	return nil
}

func (a *app) close() error {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	if a.closeLog != nil {
		return a.closeLog()
	}
	return nil
}

// registry loads agent definitions plus built-in presets.
func (a *app) registry() (*delegate.MapRegistry, error) {
	dirs := append(append([]string(nil), a.settings.AgentDirs...), a.agentDirs...)
	if len(dirs) == 0 {
		dirs = []string{filepath.Join(".delegate", "agents")}
	}
	defs, err := config.LoadAgents(dirs...)
	if err != nil {
		return nil, err
	}
	return delegate.NewMapRegistry(config.WithPresets(defs)...), nil
}

// store opens the configured sub-session store. The default persists to
// .delegate/sessions so that resume works across invocations.
func (a *app) store() (session.Store, error) {
	kind, path := a.settings.Store.Kind, a.settings.Store.Path
	if a.storeFlag != "" {
		kind, path, _ = strings.Cut(a.storeFlag, ":")
	}
	switch kind {
	case "memory":
		return session.NewMemoryStore(), nil
	case "", "file":
		if path == "" {
			path = filepath.Join(".delegate", "sessions")
		}
		return session.NewFileStore(path)
	case "sqlite":
		if path == "" {
			path = filepath.Join(".delegate", "sessions.db")
		}
		s, err := session.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// backend builds the child runtime: an external command when one is
// configured, otherwise the provider chain.
func (a *app) backend() (subagent.Backend, error) {
	if c := a.settings.Command; c.Path != "" {
		b := &subagent.CommandBackend{Path: c.Path, Args: c.Args}
		if c.Timeout != "" {
			d, err := time.ParseDuration(c.Timeout)
			if err != nil {
				return nil, fmt.Errorf("command timeout: %w", err)
			}
			b.Timeout = d
		}
		return b, nil
	}

	providers := make([]subagent.Provider, 0, len(a.settings.Providers))
	for _, p := range a.settings.Providers {
		switch p.Name {
		case "anthropic":
			providers = append(providers, subagent.NewAnthropicClientProvider(p.APIKey, p.BaseURL, p.Models...))
		case "openai":
			providers = append(providers, subagent.NewOpenAIClientProvider(p.APIKey, p.BaseURL, p.Models...))
		default:
			return nil, fmt.Errorf("unknown provider %q", p.Name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured; add a providers section or a command to the settings")
	}
	return subagent.NewProviderBackend(providers,
		subagent.WithDefaultPreferences(a.settings.DefaultPreferences...),
		subagent.WithBackendLogger(a.logger),
	), nil
}

func (a *app) parent() delegate.ParentSession {
	id := firstNonEmpty(a.parentID, a.settings.ParentSessionID)
	if id == "" {
		id = delegate.NewRootSessionID()
	}
	return delegate.StaticParent(id, nil)
}

// contextProvider reads parent history from --context-file.
func (a *app) contextProvider() delegate.ContextProvider {
	if a.contextFile == "" {
		return nil
	}
	path := a.contextFile
	return delegate.ContextProviderFunc(func(context.Context) ([]delegate.RawMessage, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var msgs []delegate.RawMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return msgs, nil
	})
}

// tool wires a Task tool over a subagent runner.
func (a *app) tool() (*delegate.TaskTool, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	backend, err := a.backend()
	if err != nil {
		return nil, err
	}

	cfg := a.settings.Delegate
	runnerOpts := []subagent.Option{
		subagent.WithStore(store),
		subagent.WithRegistry(reg),
		subagent.WithPolicies(cfg.ToolPolicy(), cfg.HookPolicy()),
		subagent.WithLogger(a.logger),
	}
	if a.settings.MaxBudgetUSD > 0 {
		runnerOpts = append(runnerOpts, subagent.WithMaxBudget(decimal.NewFromFloat(a.settings.MaxBudgetUSD)))
	}
	runner := subagent.NewRunner(backend, runnerOpts...)

	router := delegate.New(
		delegate.WithRegistry(reg),
		delegate.WithSpawner(runner),
		delegate.WithResumer(runner),
		delegate.WithContextProvider(a.contextProvider()),
		delegate.WithParentSession(a.parent()),
		delegate.WithConfig(cfg),
		delegate.WithLogger(a.logger),
		delegate.WithEventSink(delegate.EventSinkFunc(func(_ context.Context, name string, payload map[string]any) error {
			a.logger.Debug("event", "name", name, "payload", payload)
			return nil
		})),
	)
	return delegate.NewTaskTool(router), nil
}

// execute runs req through the Task tool and prints the tool result.
func (a *app) execute(cmd *cobra.Command, req delegate.Request) error {
	tool, err := a.tool()
	if err != nil {
		return err
	}
	res, err := tool.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Text())
	if res.IsError {
		return fmt.Errorf("delegation failed")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
