package persist

import (
	"fmt"
	"math"
	"strings"

	"mediaflow/internal/pipeline"
)

// rendition is one rendered form of an artifact.
type rendition struct {
	suffix      string
	contentType string
	data        []byte
}

func renditions(artifact pipeline.Artifact, jsonData []byte) []rendition {
	return []rendition{
		{suffix: ".txt", contentType: "text/plain; charset=utf-8", data: []byte(renderText(artifact))},
		{suffix: ".srt", contentType: "application/x-subrip", data: []byte(renderSRT(artifact.Segments))},
		{suffix: ".json", contentType: "application/json", data: jsonData},
	}
}

func renderText(artifact pipeline.Artifact) string {
	if artifact.Text == "" {
		return ""
	}
	return artifact.Text + "\n"
}

func renderSRT(segments []pipeline.Segment) string {
	var b strings.Builder
	index := 0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		index++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", index, srtTimestamp(seg.Start), srtTimestamp(seg.End), text)
	}
	return b.String()
}

// srtTimestamp formats seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	total /= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total/60)%60, total%60, ms)
}
