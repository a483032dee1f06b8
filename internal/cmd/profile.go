package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ljyou001/multicoder/internal/orchestrator"
	"github.com/ljyou001/multicoder/internal/profile"
	"github.com/ljyou001/multicoder/internal/prompt"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage authentication profiles",
	Long: `Manage named authentication profiles.

A profile binds one or more providers to a credential. Switching profiles
rewrites each bound provider's native credential state.`,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new profile",
	Example: `  # Create an empty profile
  multicoder profile create work

  # Create a profile with preferences
  multicoder profile create work --permission-mode auto --model opus`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileCreate,
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	Args:    cobra.NoArgs,
	RunE:    runProfileList,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile and its managed credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var profileSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Switch to a profile",
	Long: `Switch to a profile: resolve each bound provider's credential and
rewrite that provider's native configuration. Providers that fail are
reported individually; the others keep their new state.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileSwitch,
}

var profileCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileCurrent,
}

var (
	profilePermissionMode string
	profileModel          string
	profileDeleteForce    bool
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileSwitchCmd)
	profileCmd.AddCommand(profileCurrentCmd)

	profileCreateCmd.Flags().StringVar(&profilePermissionMode, "permission-mode", "", "permission mode (ask, auto, deny)")
	profileCreateCmd.Flags().StringVar(&profileModel, "model", "", "preferred model")
	profileDeleteCmd.Flags().BoolVarP(&profileDeleteForce, "force", "f", false, "skip confirmation")
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}

	name := args[0]
	opts := orchestrator.CreateOptions{
		PermissionMode: profile.PermissionMode(profilePermissionMode),
		Model:          profileModel,
	}
	if opts.PermissionMode == "" {
		if cfg := ConfigFromContext(cmd.Context()); cfg != nil && cfg.Default.PermissionMode != "" {
			opts.PermissionMode = profile.PermissionMode(cfg.Default.PermissionMode)
		}
	}

	if err := orch.CreateProfile(cmd.Context(), name, opts); err != nil {
		return err
	}
	fmt.Printf("Created profile %q. Add provider credentials with 'multicoder auth <provider> --profile %s'.\n", name, name)
	return nil
}

func runProfileList(cmd *cobra.Command, _ []string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}

	profiles, err := orch.ListProfiles(cmd.Context())
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles. Create one with 'multicoder profile create <name>'.")
		return nil
	}

	current, err := orch.CurrentProfile(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDERS\tMODE\tLAST USED")
	for _, p := range profiles {
		name := p.Name
		if current != nil && current.Name == p.Name {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, formatProviders(p), p.PermissionMode, formatLastUsed(p.LastUsedAt))
	}
	return w.Flush()
}

func formatProviders(p profile.Record) string {
	if len(p.Providers) == 0 {
		return "-"
	}
	ids := make([]string, 0, len(p.Providers))
	for id := range p.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func formatLastUsed(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	name := args[0]

	if !profileDeleteForce {
		confirmed, err := prompt.New().Confirm(
			fmt.Sprintf("Delete profile %q?", name),
			"Managed credentials for every provider bound to it will be removed.")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := orch.DeleteProfile(cmd.Context(), name); err != nil {
		return err
	}
	fmt.Printf("Deleted profile %q.\n", name)
	return nil
}

func runProfileSwitch(cmd *cobra.Command, args []string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}

	result, err := orch.SwitchProfile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, pr := range result.Results {
		if pr.Err != nil {
			fmt.Printf("  %s: failed: %v\n", pr.Provider, pr.Err)
			continue
		}
		fmt.Printf("  %s: ok\n", pr.Provider)
	}

	if failed := result.Failed(); len(failed) > 0 {
		return fmt.Errorf("switched to %q with %d provider failure(s)", result.Profile, len(failed))
	}
	fmt.Printf("Switched to profile %q.\n", result.Profile)
	if result.NeedsRestart() {
		fmt.Println("Restart running provider CLIs to pick up the new credentials.")
	}
	return nil
}

func runProfileCurrent(cmd *cobra.Command, _ []string) error {
	orch, err := requireOrchestrator(cmd.Context())
	if err != nil {
		return err
	}

	current, err := orch.CurrentProfile(cmd.Context())
	if err != nil {
		return err
	}
	if current == nil {
		fmt.Println("No current profile.")
		return nil
	}
	fmt.Println(current.Name)
	return nil
}
