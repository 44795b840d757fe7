// Package cli holds the small pieces shared by vocalis commands: output
// rendering (YAML or JSON), logger setup, and human-readable formatting of
// durations, sizes and probabilities.
//
//	cli.Output(resp, cli.OutputOptions{Format: cli.FormatJSON})
package cli
