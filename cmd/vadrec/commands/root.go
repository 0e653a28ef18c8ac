package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/vadrec/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vadrec",
	Short: "Voice-activity-triggered recorder with transcription",
	Long: `vadrec - record from the microphone until you stop talking, then transcribe.

A session starts on request, samples the input level, ends after sustained
silence (or an explicit stop) and sends the recording to the configured
transcription backend.

Settings come from built-in defaults, an optional YAML file (--config) and
environment variables, in that order of precedence.

Examples:
  # Serve the session API for a browser client
  vadrec serve --config vadrec.yaml

  # Record one utterance and print the transcript
  vadrec record

  # Find the name of an input device to pin
  vadrec devices`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd, recordCmd, devicesCmd)
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default structured logger.
func setupLogging(w io.Writer, cfg *config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}
