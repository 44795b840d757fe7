package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/haivivi/vocalis/pkg/results"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the verdict log, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := a.resultStore()
		if err != nil {
			return err
		}
		recs, err := store.List(cmd.Context())
		if errors.Is(err, results.ErrEmpty) {
			return errors.New("no results found")
		}
		if err != nil {
			return err
		}
		return printResult(cmd, recs)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}
