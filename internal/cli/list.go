package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/model"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed media",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		media, err := svc.ListMedia(cmd.Context())
		if err != nil {
			return err
		}
		if len(media) == 0 {
			dim("nothing indexed yet; run `hark transcribe <input>` first")
			return nil
		}

		header(fmt.Sprintf("Indexed media (%d)", len(media)))
		for _, m := range media {
			fmt.Printf("  %s\n", m.MediaTitle)
			kv("id", "%s", m.MediaID)
			kv("chunks", "%d", m.ChunkCount)
			kv("duration", "%s", model.FormatTimestamp(m.TotalDurationSeconds))
			kv("indexed", "%s", m.IndexedAt.Format("2006-01-02 15:04"))
			fmt.Println()
		}
		return nil
	},
}
