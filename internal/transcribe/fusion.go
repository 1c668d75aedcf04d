package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"hark/internal/config"
	"hark/internal/media"
	"hark/internal/model"
)

// wordModel and textModel abstract the per-segment transcribers so tests can
// substitute fakes.
type wordModel interface {
	TranscribeWords(ctx context.Context, path, language string) ([]model.WordTimestamp, error)
}

type textModel interface {
	TranscribeText(ctx context.Context, path, language string) (string, error)
}

// splitter is the slice of media.Tools the processor needs.
type splitter interface {
	SplitAudio(ctx context.Context, path, outDir string, chunkSeconds int) ([]media.Segment, error)
}

// Processor is the fusion transcription engine. Audio is split into
// fixed-length segments, each segment is transcribed (word timestamps plus,
// in fusion mode, a secondary text pass run concurrently), and an LLM merges
// the artefacts into sentence segments. Fusion failures fall back to
// deterministic positional alignment and never fail the segment.
type Processor struct {
	words         wordModel
	text          textModel // nil in whisper-only mode
	chat          chatAPI
	splitter      splitter
	fusionModel   string
	systemPrompt  string
	segmentSecs   int
	maxConcurrent int
}

// NewProcessor builds the engine from settings. Whisper mode leaves the
// secondary text model unset.
func NewProcessor(client *openai.Client, tools *media.Tools, cfg config.Settings, prompts config.Prompts) *Processor {
	p := &Processor{
		words:         NewWhisperModel(client, cfg.Transcription.TimestampModel),
		chat:          client,
		splitter:      tools,
		fusionModel:   cfg.Transcription.FusionModel,
		systemPrompt:  prompts.Fusion.System,
		segmentSecs:   cfg.Transcription.SegmentSeconds,
		maxConcurrent: cfg.Transcription.MaxConcurrentSegments,
	}
	if cfg.HasTextModel() {
		p.text = NewTextModel(client, cfg.Transcription.TextModel)
	}
	return p
}

// IsFullFusion reports whether a secondary text model is configured.
func (p *Processor) IsFullFusion() bool { return p.text != nil }

// Transcribe produces a sorted, non-overlapping transcript covering the
// audio end to end. The first segment failure cancels in-flight siblings and
// surfaces a transcription error.
func (p *Processor) Transcribe(ctx context.Context, audioPath, language string) (model.Transcript, error) {
	mediaID := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	if mediaID == "" {
		mediaID = "unknown"
	}

	tempDir, err := os.MkdirTemp("", "hark-segments-")
	if err != nil {
		return model.Transcript{}, model.Wrap(model.KindTranscription, err, "create segment directory")
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	segments, err := p.splitter.SplitAudio(ctx, audioPath, tempDir, p.segmentSecs)
	if err != nil {
		return model.Transcript{}, err
	}
	slog.Info("transcribing", "media", mediaID, "segments", len(segments))

	var (
		mu  sync.Mutex
		all []model.TranscriptSegment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for _, seg := range segments {
		g.Go(func() error {
			fused, err := p.processSegment(gctx, seg.Path, seg.OffsetSeconds, language)
			if err != nil {
				return model.Wrap(model.KindTranscription, err, "segment at %.0fs failed", seg.OffsetSeconds)
			}
			mu.Lock()
			all = append(all, fused...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Transcript{}, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartSeconds < all[j].StartSeconds
	})
	return model.NewTranscript(mediaID, all), nil
}

// processSegment runs the per-segment pipeline: transcribe, then fuse.
func (p *Processor) processSegment(ctx context.Context, path string, offset float64, language string) ([]model.TranscriptSegment, error) {
	var (
		words []model.WordTimestamp
		text  string
	)

	if p.text != nil {
		// full fusion: both models on the same segment, concurrently; both
		// must succeed
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			words, err = p.words.TranscribeWords(gctx, path, language)
			return err
		})
		g.Go(func() error {
			var err error
			text, err = p.text.TranscribeText(gctx, path, language)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		words, err = p.words.TranscribeWords(ctx, path, language)
		if err != nil {
			return nil, err
		}
		tokens := make([]string, 0, len(words))
		for _, w := range words {
			tokens = append(tokens, w.Word)
		}
		text = strings.Join(tokens, " ")
	}

	return p.fuseSegment(ctx, words, text, offset), nil
}

// fusedSegment is the JSON shape the fusion model returns.
type fusedSegment struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// fuseSegment merges words and text into timed sentence segments, falling
// back to positional alignment when the LLM returns nothing usable.
func (p *Processor) fuseSegment(ctx context.Context, words []model.WordTimestamp, text string, offset float64) []model.TranscriptSegment {
	trimmed := strings.TrimSpace(text)
	if len(words) == 0 || trimmed == "" {
		if trimmed != "" {
			return []model.TranscriptSegment{{
				Text:         trimmed,
				StartSeconds: offset,
				EndSeconds:   offset + lastWordEnd(words),
			}}
		}
		return nil
	}

	fused, err := p.fuseWithLLM(ctx, words, text)
	switch {
	case err != nil:
		slog.Warn("fusion failed, using positional fallback", "offset", offset, "error", err)
	case len(fused) == 0:
		slog.Warn("fusion returned no segments, using positional fallback", "offset", offset)
	default:
		out := make([]model.TranscriptSegment, 0, len(fused))
		for _, s := range fused {
			out = append(out, model.TranscriptSegment{
				Text:         s.Text,
				StartSeconds: s.StartSeconds + offset,
				EndSeconds:   s.EndSeconds + offset,
			})
		}
		return out
	}

	return alignByPosition(words, text, offset)
}

func (p *Processor) fuseWithLLM(ctx context.Context, words []model.WordTimestamp, text string) ([]fusedSegment, error) {
	wordsJSON, err := json.Marshal(words)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(
		"Word timestamps:\n%s\n\nAccurate text:\n%s\n\nReturn JSON: {\"segments\": [{\"text\": \"...\", \"start_seconds\": 0.0, \"end_seconds\": 5.0}]}",
		wordsJSON, text,
	)

	resp, err := p.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.fusionModel,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty fusion response")
	}

	var parsed struct {
		Segments []fusedSegment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("invalid fusion JSON: %w", err)
	}
	return parsed.Segments, nil
}

// alignByPosition maps the cleaner text onto word timestamps by sentence
// position: each sentence consumes as many word slots as it has whitespace-
// separated tokens.
func alignByPosition(words []model.WordTimestamp, text string, offset float64) []model.TranscriptSegment {
	if len(words) == 0 || text == "" {
		return []model.TranscriptSegment{{
			Text:         text,
			StartSeconds: offset,
			EndSeconds:   offset + lastWordEnd(words),
		}}
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []model.TranscriptSegment{{
			Text:         text,
			StartSeconds: offset,
			EndSeconds:   offset + lastWordEnd(words),
		}}
	}

	total := len(words)
	var segments []model.TranscriptSegment
	wordIdx := 0
	for _, sentence := range sentences {
		count := len(strings.Fields(sentence))
		if count == 0 {
			continue
		}

		startIdx := min(wordIdx, total-1)
		endIdx := min(wordIdx+count, total) - 1
		if endIdx < 0 {
			endIdx = 0
		}

		start := words[startIdx].Start
		end := words[endIdx].End
		if end < start+0.1 {
			end = start + 0.1
		}

		segments = append(segments, model.TranscriptSegment{
			Text:         sentence + ".",
			StartSeconds: offset + start,
			EndSeconds:   offset + end,
		})
		wordIdx += count
	}

	// keep coverage through end-of-audio when the walk came up short
	if len(segments) > 0 {
		segmentEnd := offset + lastWordEnd(words)
		last := &segments[len(segments)-1]
		if last.EndSeconds < segmentEnd-1.0 {
			last.EndSeconds = segmentEnd
		}
	}
	return segments
}

func splitSentences(text string) []string {
	pieces := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func lastWordEnd(words []model.WordTimestamp) float64 {
	if len(words) == 0 {
		return 10.0
	}
	return words[len(words)-1].End
}
