package transcribe

import (
	"encoding/json"
	"fmt"
	"strings"

	"hark/internal/model"
)

// OutputFormat selects a transcript export encoding.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatSRT  OutputFormat = "srt"
	FormatVTT  OutputFormat = "vtt"
)

// ParseFormat validates a format name. "webvtt" is accepted as an alias.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	default:
		return "", model.Errf(model.KindInvalidInput, "unknown format %q: use json, srt or vtt", s)
	}
}

// segmentExport is the JSON export shape of one segment.
type segmentExport struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Title        string  `json:"title,omitempty"`
}

type transcriptExport struct {
	MediaID         string          `json:"media_id"`
	DurationSeconds float64         `json:"duration_seconds"`
	Segments        []segmentExport `json:"segments"`
}

// Format renders a transcript in the requested encoding.
func Format(t model.Transcript, format OutputFormat) string {
	switch format {
	case FormatSRT:
		return formatSRT(t)
	case FormatVTT:
		return formatVTT(t)
	default:
		return formatJSON(t)
	}
}

func formatJSON(t model.Transcript) string {
	export := transcriptExport{
		MediaID:         t.MediaID,
		DurationSeconds: t.DurationSeconds,
		Segments:        make([]segmentExport, 0, len(t.Segments)),
	}
	for _, seg := range t.Segments {
		export.Segments = append(export.Segments, segmentExport{
			Text:         seg.Text,
			StartSeconds: seg.StartSeconds,
			EndSeconds:   seg.EndSeconds,
		})
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func formatSRT(t model.Transcript) string {
	var b strings.Builder
	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", cueTimestamp(seg.StartSeconds, ","), cueTimestamp(seg.EndSeconds, ","))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func formatVTT(t model.Transcript) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, seg := range t.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", cueTimestamp(seg.StartSeconds, "."), cueTimestamp(seg.EndSeconds, "."))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// cueTimestamp renders HH:MM:SS<sep>mmm; SRT uses a comma separator, WebVTT
// a period.
func cueTimestamp(seconds float64, sep string) string {
	totalMS := int64(seconds * 1000)
	h := totalMS / 3_600_000
	m := (totalMS % 3_600_000) / 60_000
	s := (totalMS % 60_000) / 1000
	ms := totalMS % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, sep, ms)
}
