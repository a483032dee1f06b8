package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout <provider>",
	Short: "Remove a provider's credentials",
	Long: `Remove a provider's native credential material and the managed record
stored for the profile. Native files are backed up before removal.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogout,
}

var logoutProfileFlag string

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().StringVar(&logoutProfileFlag, "profile", "", "profile to log out (default: current)")
}

func runLogout(cmd *cobra.Command, args []string) error {
	providerID := args[0]
	if err := validateProviderArg(providerID); err != nil {
		return err
	}

	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	profileName, err := resolveProfileName(cmd.Context(), orch, logoutProfileFlag)
	if err != nil {
		return err
	}

	if err := orch.LogoutProvider(cmd.Context(), providerID, profileName); err != nil {
		return err
	}
	fmt.Printf("Logged out %s for profile %q.\n", providerID, profileName)
	return nil
}
