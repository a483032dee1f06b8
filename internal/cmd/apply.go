package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <provider>",
	Short: "Apply a profile's credential to a provider's native config",
	Long: `Resolve the authoritative credential for a provider and write it into
that provider's native configuration, without switching profiles.`,
	Example: `  # Re-apply the current profile's Claude credential
  multicoder apply claude`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var applyProfileFlag string

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&applyProfileFlag, "profile", "", "profile to apply from (default: current)")
}

func runApply(cmd *cobra.Command, args []string) error {
	providerID := args[0]
	if err := validateProviderArg(providerID); err != nil {
		return err
	}

	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	profileName, err := resolveProfileName(cmd.Context(), orch, applyProfileFlag)
	if err != nil {
		return err
	}

	result, err := orch.ApplyProvider(cmd.Context(), providerID, profileName)
	if err != nil {
		return err
	}

	fmt.Printf("Applied %s credentials from profile %q.\n", providerID, profileName)
	if result.NeedsRestart {
		fmt.Printf("Restart any running %s session to pick up the change.\n", providerID)
	}
	return nil
}
