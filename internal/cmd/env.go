package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage persisted environment variables",
	Long: `Manage environment variables persisted across shells and reboots.

User-scope variables are written to a managed environment file sourced by
shell startup files (and mirrored to GUI apps via a launch agent on
macOS). System scope uses /etc/profile.d on Linux and the machine store
on Windows; it is unsupported on macOS.`,
}

var envSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Persist an environment variable",
	Args:  cobra.ExactArgs(2),
	RunE:  runEnvSet,
}

var envGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a persisted environment variable",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvGet,
}

var envUnsetCmd = &cobra.Command{
	Use:   "unset <name>",
	Short: "Remove a persisted environment variable",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnvUnset,
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted environment variables",
	Args:  cobra.NoArgs,
	RunE:  runEnvList,
}

var envSystemFlag bool

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envSetCmd)
	envCmd.AddCommand(envGetCmd)
	envCmd.AddCommand(envUnsetCmd)
	envCmd.AddCommand(envListCmd)

	envCmd.PersistentFlags().BoolVar(&envSystemFlag, "system", false, "use system scope instead of user scope")
}

func runEnvSet(cmd *cobra.Command, args []string) error {
	env, err := requireEnvStore(cmd.Context())
	if err != nil {
		return err
	}
	if err := env.Set(args[0], args[1], parseScope(envSystemFlag)); err != nil {
		return err
	}
	fmt.Printf("Set %s. New shells will see it; restart running ones.\n", args[0])
	return nil
}

func runEnvGet(cmd *cobra.Command, args []string) error {
	env, err := requireEnvStore(cmd.Context())
	if err != nil {
		return err
	}
	value, ok, err := env.Get(args[0], parseScope(envSystemFlag))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	fmt.Println(value)
	return nil
}

func runEnvUnset(cmd *cobra.Command, args []string) error {
	env, err := requireEnvStore(cmd.Context())
	if err != nil {
		return err
	}
	if err := env.Remove(args[0], parseScope(envSystemFlag)); err != nil {
		return err
	}
	fmt.Printf("Removed %s.\n", args[0])
	return nil
}

func runEnvList(cmd *cobra.Command, _ []string) error {
	env, err := requireEnvStore(cmd.Context())
	if err != nil {
		return err
	}
	vars, err := env.List(parseScope(envSystemFlag))
	if err != nil {
		return err
	}
	if len(vars) == 0 {
		fmt.Println("No persisted variables.")
		return nil
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s=%s\n", name, vars[name])
	}
	return nil
}
