package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/vocalis/cmd/vocalis/internal/config"
	"github.com/haivivi/vocalis/pkg/cli"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	outputFormat string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "vocalis",
	Short: "Voice authenticity detection and speaker verification",
	Long: `vocalis - voice deepfake detection and GMM speaker verification.

Detection splits each recording into fixed-length segments, fuses a learned
embedding with handcrafted spectral descriptors and averages the classifier's
per-segment probability into one REAL/FAKE verdict per file.

Speaker verification fits a Gaussian mixture per enrolled user over MFCC and
delta features and picks the best-scoring user for a test recording.

Configuration is read from the OS config directory unless --config is set:
  macOS:   ~/Library/Application Support/vocalis/config.yaml
  Linux:   ~/.config/vocalis/config.yaml
  Windows: %AppData%/vocalis/config.yaml

Examples:
  vocalis detect clip1.wav clip2.mp3
  vocalis detect --dir ./recordings -o json
  vocalis enroll --user alice a1.wav a2.wav a3.wav
  vocalis verify --user alice test.wav
  vocalis serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := cli.NewLogger(os.Stderr, verbose, cli.LogFormat(logFormat))
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// loadConfig reads the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	return cfg, nil
}

// printResult writes v to stdout in the --output format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.Output(v, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
}
