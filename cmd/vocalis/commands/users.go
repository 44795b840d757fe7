package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/vocalis/pkg/cli"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List or delete enrolled speakers",
}

var usersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List enrolled users",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		enr, err := a.enroller()
		if err != nil {
			return err
		}
		users, err := enr.Users(cmd.Context())
		if err != nil {
			return err
		}
		if users == nil {
			users = []string{}
		}
		return printResult(cmd, map[string]any{"users": users})
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a user's voiceprint",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		enr, err := a.enroller()
		if err != nil {
			return err
		}
		ok, err := enr.Exists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user %q is not enrolled", args[0])
		}
		if err := enr.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("deleted %s", args[0])
		return nil
	},
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	rootCmd.AddCommand(usersCmd)
}
