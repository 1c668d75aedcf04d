package transcribe

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hark/internal/model"
)

func sampleTranscript() model.Transcript {
	return model.NewTranscript("test123", []model.TranscriptSegment{
		{Text: "Hello world.", StartSeconds: 0.0, EndSeconds: 2.5},
		{Text: "This is a test.", StartSeconds: 2.5, EndSeconds: 5.0},
	})
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]OutputFormat{
		"json": FormatJSON, "srt": FormatSRT, "vtt": FormatVTT, "webvtt": FormatVTT, "SRT": FormatSRT,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("docx")
	assert.True(t, model.IsKind(err, model.KindInvalidInput))
}

func TestFormatJSON(t *testing.T) {
	out := Format(sampleTranscript(), FormatJSON)

	var parsed transcriptExport
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "test123", parsed.MediaID)
	assert.Equal(t, 5.0, parsed.DurationSeconds)
	require.Len(t, parsed.Segments, 2)
	assert.Equal(t, "Hello world.", parsed.Segments[0].Text)
	assert.Equal(t, 2.5, parsed.Segments[0].EndSeconds)
}

func TestFormatSRT(t *testing.T) {
	out := Format(sampleTranscript(), FormatSRT)
	assert.Contains(t, out, "1\n00:00:00,000 --> 00:00:02,500\nHello world.")
	assert.Contains(t, out, "2\n00:00:02,500 --> 00:00:05,000\nThis is a test.")
}

func TestFormatVTT(t *testing.T) {
	out := Format(sampleTranscript(), FormatVTT)
	assert.True(t, strings.HasPrefix(out, "WEBVTT\n\n"))
	assert.Contains(t, out, "00:00:00.000 --> 00:00:02.500")
}

func TestCueTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:00,000", cueTimestamp(0, ","))
	assert.Equal(t, "00:01:01,500", cueTimestamp(61.5, ","))
	assert.Equal(t, "01:01:01.123", cueTimestamp(3661.123, "."))
}

// parseCues reads formatted SRT/VTT back into segments for the round-trip
// property.
func parseCues(t *testing.T, out, sep string) []model.TranscriptSegment {
	t.Helper()
	var segments []model.TranscriptSegment
	blocks := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, "WEBVTT\n")), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		times := strings.Split(lines[1], " --> ")
		require.Len(t, times, 2)
		segments = append(segments, model.TranscriptSegment{
			Text:         strings.Join(lines[2:], "\n"),
			StartSeconds: parseCueTime(t, times[0], sep),
			EndSeconds:   parseCueTime(t, times[1], sep),
		})
	}
	return segments
}

func parseCueTime(t *testing.T, s, sep string) float64 {
	t.Helper()
	main, msPart, ok := strings.Cut(s, sep)
	require.True(t, ok, s)
	parts := strings.Split(main, ":")
	require.Len(t, parts, 3)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec, _ := strconv.Atoi(parts[2])
	ms, _ := strconv.Atoi(msPart)
	return float64(h*3600+m*60+sec) + float64(ms)/1000
}

func TestSRTRoundTrip(t *testing.T) {
	tr := sampleTranscript()
	parsed := parseCues(t, Format(tr, FormatSRT), ",")

	require.Len(t, parsed, len(tr.Segments))
	for i := range parsed {
		assert.Equal(t, tr.Segments[i].Text, parsed[i].Text)
		assert.InDelta(t, tr.Segments[i].StartSeconds, parsed[i].StartSeconds, 0.001)
		assert.InDelta(t, tr.Segments[i].EndSeconds, parsed[i].EndSeconds, 0.001)
	}
}

func TestVTTRoundTrip(t *testing.T) {
	tr := sampleTranscript()
	parsed := parseCues(t, Format(tr, FormatVTT), ".")

	require.Len(t, parsed, len(tr.Segments))
	for i := range parsed {
		assert.InDelta(t, tr.Segments[i].StartSeconds, parsed[i].StartSeconds, 0.001)
	}
}
