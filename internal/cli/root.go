// Package cli implements the hark command-line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hark/internal/config"
	"hark/internal/model"
)

// Exit codes.
const (
	ExitSuccess       = 0
	ExitGenericError  = 1
	ExitConfigInvalid = 2
)

var (
	flagConfigPath string
	flagVerbosity  int

	settings config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "hark",
	Short: "Transcribe, index and query spoken audio",
	Long: "hark turns spoken audio (YouTube videos or local files) into searchable,\n" +
		"timestamped transcripts with semantic search, RAG answers and an agent loop.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		setupLogging()
		if cmd.Name() == "init" {
			// init writes the config file; don't require one
			settings = config.Default()
			return nil
		}
		loaded, err := config.Load(flagConfigPath)
		if err != nil {
			return err
		}
		settings = loaded
		return nil
	},
}

func setupLogging() {
	level := slog.LevelWarn
	switch {
	case flagVerbosity >= 2:
		level = slog.LevelDebug
	case flagVerbosity == 1:
		level = slog.LevelInfo
	}
	if env := os.Getenv("HARK_LOG_LEVEL"); env != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(env)); err == nil {
			level = parsed
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().CountVarP(&flagVerbosity, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rechunkCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fail("%v", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if model.IsKind(err, model.KindConfig) {
		return ExitConfigInvalid
	}
	return ExitGenericError
}
