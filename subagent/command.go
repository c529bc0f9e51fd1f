package subagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/creack/pty"
)

const (
	defaultCommandTimeout = 10 * time.Minute
	maxOutputBytes        = 30_000
)

// CommandBackend runs each turn as an external process, typically an agent
// CLI. The prompt is passed as the final argument and the process output
// becomes the turn's text. The child sees its identity through DELEGATE_*
// environment variables; an inherited orchestrator config arrives as JSON in
// DELEGATE_ORCHESTRATOR_CONFIG.
type CommandBackend struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Run implements Backend.
func (b *CommandBackend) Run(ctx context.Context, task *Task) (*Output, error) {
	if b.Path == "" {
		return nil, errors.New("command backend: path is required")
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := renderTranscript(task.History, task.Instruction)
	if task.Agent.Instructions != "" {
		prompt = task.Agent.Instructions + "\n\n" + prompt
	}

	output, err := b.runPTY(cmdCtx, task, prompt)
	if errors.Is(err, errPTYUnavailable) {
		output, err = b.runPlain(cmdCtx, task, prompt)
	}
	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("command timed out after %s", timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command exited with code %d: %s", exitErr.ExitCode(), tail(output, 500))
		}
		return nil, err
	}
	return &Output{Text: strings.TrimSpace(output)}, nil
}

var errPTYUnavailable = errors.New("pty unavailable")

func (b *CommandBackend) command(ctx context.Context, task *Task, prompt string) *exec.Cmd {
	args := append(append([]string(nil), b.Args...), prompt)
	cmd := exec.CommandContext(ctx, b.Path, args...)
	cmd.Dir = b.Dir
	cmd.Env = append(os.Environ(), b.Env...)
	cmd.Env = append(cmd.Env,
		"DELEGATE_SESSION_ID="+task.SessionID,
		"DELEGATE_AGENT="+task.Agent.Name,
		"DELEGATE_DEPTH="+strconv.Itoa(task.Depth),
		"DELEGATE_TOOLS="+strings.Join(task.Tools.Names(), ","),
		"DELEGATE_HOOKS="+strings.Join(task.Hooks, ","),
	)
	if len(task.OrchestratorConfig) > 0 {
		if raw, err := json.Marshal(task.OrchestratorConfig); err == nil {
			cmd.Env = append(cmd.Env, "DELEGATE_ORCHESTRATOR_CONFIG="+string(raw))
		}
	}
	return cmd
}

func (b *CommandBackend) runPTY(ctx context.Context, task *Task, prompt string) (string, error) {
	cmd := b.command(ctx, task, prompt)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", errPTYUnavailable
	}
	defer ptmx.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, ptmx) // PTY read returns EIO on process exit
	waitErr := cmd.Wait()

	// The terminal line discipline turns \n into \r\n.
	return truncate(strings.ReplaceAll(buf.String(), "\r", "")), waitErr
}

func (b *CommandBackend) runPlain(ctx context.Context, task *Task, prompt string) (string, error) {
	out, err := b.command(ctx, task, prompt).CombinedOutput()
	return truncate(string(out)), err
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	cut := maxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... [output truncated]"
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
