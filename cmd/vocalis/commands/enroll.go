package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/haivivi/vocalis/pkg/audio/wave"
	"github.com/haivivi/vocalis/pkg/cli"
)

var enrollUser string

var enrollCmd = &cobra.Command{
	Use:   "enroll --user <name> <files...>",
	Short: "Build a speaker voiceprint from recordings",
	Long: `Fit a Gaussian mixture over the speaker features of every recording and
store it as the user's voiceprint, replacing any previous one.

Examples:
  vocalis enroll --user alice a1.wav a2.wav a3.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollUser, "user", "u", "", "user name (required)")
	enrollCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	if enrollUser == "" {
		return errors.New("--user is required")
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	enr, err := a.enroller()
	if err != nil {
		return err
	}
	loader := a.speakerLoader()
	bufs := make([]*wave.Buffer, 0, len(args))
	for _, path := range args {
		b, err := loader.LoadFile(cmd.Context(), path)
		if err != nil {
			return err
		}
		bufs = append(bufs, b)
	}

	vp, err := enr.Enroll(cmd.Context(), enrollUser, bufs)
	if err != nil {
		return err
	}
	cli.PrintSuccess("enrolled %s (%d recordings, %d frames)", vp.User, vp.Recordings, vp.Frames)
	return printResult(cmd, map[string]any{
		"user":       vp.User,
		"recordings": vp.Recordings,
		"frames":     vp.Frames,
		"components": vp.Model.Components(),
		"created_at": vp.CreatedAt,
	})
}
