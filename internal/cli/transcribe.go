package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hark/internal/app"
	"hark/internal/model"
	"hark/internal/pipeline"
	"hark/internal/transcribe"
)

var (
	flagForce        bool
	flagOutput       string
	flagOutputFormat string
	flagChunk        bool
	flagEmbed        bool
	flagPlaylist     bool
	flagLimit        int
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <input>",
	Short: "Transcribe and index media (YouTube URL, video ID or local file)",
	Long: "Transcribe media and index it into the knowledge base.\n\n" +
		"With --output the transcript is only exported to a file, nothing is\n" +
		"indexed; --chunk and --embed enrich the exported JSON.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]

		switch {
		case flagEmbed && !flagChunk:
			return model.Errf(model.KindInvalidInput, "--embed requires --chunk")
		case (flagChunk || flagEmbed) && flagOutput == "":
			return model.Errf(model.KindInvalidInput, "--chunk and --embed require --output")
		case flagPlaylist && flagOutput != "":
			return model.Errf(model.KindInvalidInput, "--playlist cannot be combined with --output")
		}

		if err := pipeline.Preflight(settings, true); err != nil {
			return err
		}

		svc, err := app.NewService(settings)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		ctx := cmd.Context()

		if flagOutput != "" {
			return exportTranscript(cmd, svc, input)
		}

		if flagPlaylist {
			results, errs := svc.Orchestrator().ProcessPlaylist(ctx, input, flagLimit, flagForce)
			for _, res := range results {
				reportResult(res)
			}
			for _, err := range errs {
				warn("%v", err)
			}
			if len(results) == 0 && len(errs) > 0 {
				return errs[0]
			}
			return nil
		}

		res, err := svc.ProcessMedia(ctx, input, flagForce)
		if err != nil {
			return err
		}
		reportResult(res)
		return nil
	},
}

func reportResult(res model.ProcessResult) {
	if res.Skipped {
		dim("%s is already indexed (use --force to re-process)", res.MediaID)
		return
	}
	success("indexed %q (%s): %d chunks", res.Title, res.MediaID, res.ChunksIndexed)
}

// chunkedExport is the JSON shape written by --output --chunk.
type chunkedExport struct {
	MediaID             string        `json:"media_id"`
	Title               string        `json:"title"`
	DurationSeconds     float64       `json:"duration_seconds"`
	ChunkCount          int           `json:"chunk_count"`
	Chunks              []chunkExport `json:"chunks"`
	EmbeddingModel      string        `json:"embedding_model,omitempty"`
	EmbeddingDimensions int           `json:"embedding_dimensions,omitempty"`
}

type chunkExport struct {
	Title        string    `json:"title,omitempty"`
	Content      string    `json:"content"`
	StartSeconds float64   `json:"start_seconds"`
	EndSeconds   float64   `json:"end_seconds"`
	Embedding    []float32 `json:"embedding,omitempty"`
}

// exportTranscript transcribes without indexing and writes the result to
// the output file.
func exportTranscript(cmd *cobra.Command, svc *app.Service, input string) error {
	format, err := transcribe.ParseFormat(flagOutputFormat)
	if err != nil {
		return err
	}
	if flagChunk && format != transcribe.FormatJSON {
		return model.Errf(model.KindInvalidInput, "--chunk only supports JSON format")
	}

	ctx := cmd.Context()
	ref, transcript, err := svc.Orchestrator().TranscribeOnly(ctx, input)
	if err != nil {
		return err
	}
	kv("Title", "%s", ref.Title)

	var rendered []byte
	if flagChunk {
		chunks, err := svc.Orchestrator().ChunkTranscript(ctx, transcript)
		if err != nil {
			return err
		}

		export := chunkedExport{
			MediaID:         ref.ID,
			Title:           ref.Title,
			DurationSeconds: transcript.DurationSeconds,
			ChunkCount:      len(chunks),
		}
		var vectors [][]float32
		if flagEmbed {
			vectors, err = svc.Orchestrator().EmbedChunks(ctx, chunks)
			if err != nil {
				return err
			}
			export.EmbeddingModel = settings.Embedding.Model
			export.EmbeddingDimensions = settings.Embedding.Dimensions
		}
		for i, c := range chunks {
			ce := chunkExport{
				Title:        c.Title,
				Content:      c.Content,
				StartSeconds: c.StartSeconds,
				EndSeconds:   c.EndSeconds,
			}
			if vectors != nil {
				ce.Embedding = vectors[i]
			}
			export.Chunks = append(export.Chunks, ce)
		}
		rendered, err = json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("encode chunked transcript: %w", err)
		}
	} else {
		rendered = []byte(transcribe.Format(transcript, format))
	}

	if err := os.WriteFile(flagOutput, rendered, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	success("wrote %s transcript to %s", format, flagOutput)
	return nil
}

func init() {
	transcribeCmd.Flags().BoolVar(&flagForce, "force", false, "re-process even if already indexed")
	transcribeCmd.Flags().StringVar(&flagOutput, "output", "", "export the transcript to this file instead of indexing")
	transcribeCmd.Flags().StringVar(&flagOutputFormat, "format", "json", "transcript output format (json, srt, vtt)")
	transcribeCmd.Flags().BoolVar(&flagChunk, "chunk", false, "include semantic chunks in the exported JSON")
	transcribeCmd.Flags().BoolVar(&flagEmbed, "embed", false, "include embeddings in the exported chunks")
	transcribeCmd.Flags().BoolVar(&flagPlaylist, "playlist", false, "treat input as a playlist, channel or directory")
	transcribeCmd.Flags().IntVar(&flagLimit, "limit", 0, "maximum playlist items to process (0 = source default)")
}
