package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	delegate "github.com/armatrix/delegate-go"
)

// --- delegate run ---

func newRunCmd(a *app) *cobra.Command {
	var (
		agent     string
		instr     string
		inherit   string
		turns     int
		providers []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn a new sub-session",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := parsePreferences(providers)
			if err != nil {
				return err
			}
			req := delegate.Request{
				Agent:               agent,
				Instruction:         instr,
				InheritContext:      delegate.InheritMode(inherit),
				ProviderPreferences: prefs,
			}
			if cmd.Flags().Changed("turns") {
				req.InheritContextTurns = &turns
			}
			return a.execute(cmd, req)
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Agent name (required)")
	cmd.Flags().StringVar(&instr, "instruction", "", "Task instruction (required)")
	cmd.Flags().StringVar(&inherit, "inherit", "", "Parent context to pass: none, recent or all")
	cmd.Flags().IntVar(&turns, "turns", delegate.DefaultInheritTurns, "Turns passed with --inherit recent")
	cmd.Flags().StringArrayVar(&providers, "provider", nil, "Provider preference as provider/model; may be repeated, first wins")
	return cmd
}

// --- delegate resume ---

func newResumeCmd(a *app) *cobra.Command {
	var sessionID, instr string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue an existing sub-session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			return a.execute(cmd, delegate.Request{SessionID: sessionID, Instruction: instr})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Sub-session id to resume (required)")
	cmd.Flags().StringVar(&instr, "instruction", "", "Task instruction (required)")
	return cmd
}

// parsePreferences turns provider/model flags into a preference chain.
func parsePreferences(vals []string) ([]delegate.ProviderPreference, error) {
	prefs := make([]delegate.ProviderPreference, 0, len(vals))
	for _, v := range vals {
		provider, model, ok := strings.Cut(v, "/")
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("invalid provider preference %q, want provider/model", v)
		}
		prefs = append(prefs, delegate.ProviderPreference{Provider: provider, Model: model})
	}
	return prefs, nil
}
