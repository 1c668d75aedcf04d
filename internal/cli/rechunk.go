package cli

import (
	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/pipeline"
)

var rechunkCmd = &cobra.Command{
	Use:   "rechunk <media-id|all>",
	Short: "Re-chunk and re-embed from stored transcripts without re-transcribing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pipeline.Preflight(settings, false); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		ctx := cmd.Context()
		orch := svc.Orchestrator()

		if args[0] != "all" {
			res, err := orch.RechunkMedia(ctx, args[0])
			if err != nil {
				return err
			}
			success("rechunked %q: %d chunks", res.Title, res.ChunksIndexed)
			return nil
		}

		transcripts, err := orch.ListRechunkable(ctx)
		if err != nil {
			return err
		}
		if len(transcripts) == 0 {
			dim("no stored transcripts to rechunk")
			return nil
		}

		for _, st := range transcripts {
			res, err := orch.RechunkMedia(ctx, st.MediaID)
			if err != nil {
				warn("%s: %v", st.MediaID, err)
				continue
			}
			success("rechunked %q: %d chunks", res.Title, res.ChunksIndexed)
		}
		return nil
	},
}
