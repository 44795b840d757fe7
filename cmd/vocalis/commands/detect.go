package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/haivivi/vocalis/pkg/cli"
	"github.com/haivivi/vocalis/pkg/detect"
)

var (
	detectDir     string
	detectService bool
)

var detectCmd = &cobra.Command{
	Use:   "detect [files...]",
	Short: "Classify audio files as REAL or FAKE",
	Long: `Classify each input file as REAL or FAKE.

Files that cannot be decoded are reported as failures next to the verdicts
of the others. With --dir every accepted file in the directory is scanned.

Examples:
  vocalis detect a.wav b.mp3
  vocalis detect --dir ./clips --service -o json`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectDir, "dir", "", "scan a directory instead of listing files")
	detectCmd.Flags().BoolVar(&detectService, "service", false, "use the short service segments")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	if detectDir == "" && len(args) == 0 {
		return errors.New("no input: pass files or --dir")
	}
	if detectDir != "" && len(args) > 0 {
		return errors.New("--dir and file arguments are exclusive")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(detectService)
	if err != nil {
		return err
	}

	var resp *detect.Response
	if detectDir != "" {
		resp, err = p.DetectDir(cmd.Context(), detectDir)
	} else {
		inputs := make([]detect.Input, len(args))
		for i, path := range args {
			inputs[i] = detect.FileInput(path)
		}
		resp, err = p.Detect(cmd.Context(), inputs)
	}
	if resp != nil {
		if perr := printResult(cmd, resp); perr != nil {
			return perr
		}
		for _, f := range resp.Failures {
			cli.PrintWarning("%s: %s", f.Filename, f.Reason)
		}
	}
	return err
}
