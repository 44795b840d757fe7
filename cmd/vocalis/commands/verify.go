package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var verifyUser string

var verifyCmd = &cobra.Command{
	Use:   "verify --user <name> <file>",
	Short: "Check a recording against an enrolled speaker",
	Long: `Score the recording against every enrolled voiceprint. The result is
success when the best-scoring user is the claimed one.

Examples:
  vocalis verify --user alice test.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyUser, "user", "u", "", "claimed user name (required)")
	verifyCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyUser == "" {
		return errors.New("--user is required")
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ver, err := a.verifier()
	if err != nil {
		return err
	}
	buf, err := a.speakerLoader().LoadFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	res, err := ver.Verify(cmd.Context(), verifyUser, buf)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}
