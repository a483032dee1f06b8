package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-provider credential status for the current profile",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusProfileFlag string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusProfileFlag, "profile", "", "profile to inspect (default: current)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	profileName, err := resolveProfileName(cmd.Context(), orch, statusProfileFlag)
	if err != nil {
		return err
	}

	statuses, err := orch.Status(cmd.Context(), profileName)
	if err != nil {
		return err
	}

	fmt.Printf("Profile: %s\n\n", profileName)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSOURCE\tSTATE\tEXPIRES")
	for _, st := range statuses {
		source, state, expires := "-", "not configured", "-"
		switch {
		case st.Err != nil:
			state = "error: " + st.Err.Error()
		case st.Info != nil:
			source = string(st.Info.Source)
			if st.Valid {
				state = "valid"
			} else {
				state = "expired"
			}
			if st.Info.ExpiresAt != 0 {
				expires = time.UnixMilli(st.Info.ExpiresAt).Local().Format("2006-01-02 15:04")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Provider, source, state, expires)
	}
	return w.Flush()
}
