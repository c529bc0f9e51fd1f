package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/session"
)

// --- delegate agents ---

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "agents",
		Aliases: []string{"ls"},
		Short:   "List available agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, def := range reg.List() {
				desc := def.Description
				if desc == "" {
					desc = "No description"
				}
				fmt.Fprintf(w, "%s\t%s\n", def.Name, desc)
			}
			return w.Flush()
		},
	}
}

// --- delegate sessions ---

func newSessionsCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sub-sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			var records []*session.Record
			if parent != "" {
				records, err = session.Children(cmd.Context(), store, parent)
			} else {
				records, err = store.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAGENT\tTURNS\tCOST\tUPDATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t$%s\t%s\n",
					r.ID, r.AgentName, r.NumTurns, r.TotalCost.StringFixed(4), r.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&parent, "of", "", "Only sub-sessions of this parent session id")
	return cmd
}

// --- delegate id ---

func newIDCmd(a *app) *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Generate a sub-session id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				return fmt.Errorf("--agent is required")
			}
			parentID := firstNonEmpty(a.parentID, a.settings.ParentSessionID)
			fmt.Fprintln(cmd.OutOrStdout(), delegate.GenerateSubSessionID(parentID, agent))
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Agent name (required)")
	return cmd
}
