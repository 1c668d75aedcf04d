package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/model"
	"hark/internal/transcribe"
)

var (
	flagExportOutput string
	flagExportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <media-id>",
	Short: "Export a stored transcript as JSON, SRT or WebVTT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mediaID := args[0]
		format, err := transcribe.ParseFormat(flagExportFormat)
		if err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		stored, err := svc.StoredTranscript(cmd.Context(), mediaID)
		if err != nil {
			return err
		}
		if stored == nil {
			return model.Errf(model.KindInvalidInput,
				"no stored transcript for %q; only media transcribed by hark can be exported", mediaID)
		}

		rendered := transcribe.Format(stored.Transcript, format)
		if flagExportOutput == "" {
			fmt.Print(rendered)
			return nil
		}
		if err := os.WriteFile(flagExportOutput, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		success("exported %q to %s", stored.MediaTitle, flagExportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&flagExportOutput, "output", "", "write to this file instead of stdout")
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "json", "output format (json, srt, vtt)")
}
