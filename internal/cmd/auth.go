package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/orchestrator"
	"github.com/ljyou001/multicoder/internal/prompt"
)

var authCmd = &cobra.Command{
	Use:   "auth <provider>",
	Short: "Configure provider authentication for a profile",
	Long: `Configure authentication for a provider and store the credential in the
current profile (or the one named with --profile).

Each provider offers its own auth options: OAuth via the provider's own
CLI, an API key, and provider-specific variants (Vertex AI for Gemini,
Azure OpenAI for Codex).`,
	Example: `  # Authenticate Claude for the current profile
  multicoder auth claude

  # Check authentication status
  multicoder auth claude --status

  # Skip the option prompt
  multicoder auth codex --option api-key --profile work

  # Store an API key without prompting
  multicoder auth claude --api-key sk-ant-...

  # Snapshot the provider's existing native credential into the profile
  multicoder auth gemini --link`,
	Args: cobra.ExactArgs(1),
	RunE: runAuth,
}

var (
	authStatusFlag  bool
	authOptionFlag  string
	authProfileFlag string
	authLinkFlag    bool
	authAPIKeyFlag  string
)

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().BoolVar(&authStatusFlag, "status", false, "Show current authentication status")
	authCmd.Flags().StringVar(&authOptionFlag, "option", "", "auth option id (skips the prompt)")
	authCmd.Flags().StringVar(&authProfileFlag, "profile", "", "profile to store the credential in (default: current)")
	authCmd.Flags().BoolVar(&authLinkFlag, "link", false, "snapshot the provider's existing native credential instead of re-authenticating")
	authCmd.Flags().StringVar(&authAPIKeyFlag, "api-key", "", "store the given API key without prompting")
	authCmd.MarkFlagsMutuallyExclusive("status", "option", "link", "api-key")
}

func runAuth(cmd *cobra.Command, args []string) error {
	providerID := args[0]
	if err := validateProviderArg(providerID); err != nil {
		return err
	}

	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	profileName, err := resolveProfileName(cmd.Context(), orch, authProfileFlag)
	if err != nil {
		return err
	}

	if authStatusFlag {
		return showAuthStatus(cmd, providerID, profileName)
	}

	if authLinkFlag {
		if err := orch.LinkExistingCredential(cmd.Context(), providerID, profileName); err != nil {
			return err
		}
		fmt.Printf("Linked %s's native credential into profile %q.\n", providerID, profileName)
		return nil
	}

	if authAPIKeyFlag != "" {
		if err := orch.LoginWithAPIKey(cmd.Context(), providerID, profileName, authAPIKeyFlag, nil); err != nil {
			return err
		}
		fmt.Printf("Stored %s credential in profile %q.\n", providerID, profileName)
		return nil
	}

	optionID := authOptionFlag
	if optionID == "" {
		optionID, err = chooseAuthOption(orch, providerID)
		if err != nil {
			return err
		}
	}

	if err := orch.AuthenticateProvider(cmd.Context(), providerID, profileName, optionID); err != nil {
		return err
	}
	fmt.Printf("Stored %s credential in profile %q.\n", providerID, profileName)
	return nil
}

// chooseAuthOption prompts for one of the provider's auth options.
func chooseAuthOption(orch *orchestrator.Orchestrator, providerID string) (string, error) {
	opts, err := orch.GetAuthOptions(providerID)
	if err != nil {
		return "", err
	}
	if len(opts) == 1 {
		return opts[0].ID, nil
	}

	labels := make([]string, len(opts))
	for i, opt := range opts {
		labels[i] = fmt.Sprintf("%s: %s", opt.Name, opt.Description)
	}
	idx, err := prompt.New().Choice("How do you want to authenticate?", labels)
	if err != nil {
		return "", err
	}
	return opts[idx].ID, nil
}

// showAuthStatus displays the resolved credential for a provider+profile.
func showAuthStatus(cmd *cobra.Command, providerID, profileName string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}

	info, valid, err := orch.CheckProviderAuth(cmd.Context(), providerID, profileName)
	if errors.Is(err, credential.ErrNotFound) {
		fmt.Printf("%s: not configured\n", providerID)
		return nil
	}
	if err != nil {
		return err
	}

	state := "valid"
	if !valid {
		state = "expired; re-authenticate with 'multicoder auth " + providerID + "'"
	}
	fmt.Printf("%s: %s (%s)\n", providerID, info.Source, state)
	if info.ExpiresAt != 0 {
		fmt.Printf("  expires: %s\n", time.UnixMilli(info.ExpiresAt).Local().Format(time.RFC3339))
	}
	if info.LocationPath != "" {
		fmt.Printf("  location: %s\n", info.LocationPath)
	}
	if info.EnvVarName != "" {
		fmt.Printf("  variable: %s\n", info.EnvVarName)
	}
	return nil
}
