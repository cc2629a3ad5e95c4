package pipeline

import "time"

// Word is a single word with timing.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a timed span of transcribed text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Transcript is the transcription stage artifact.
type Transcript struct {
	Key       string    `json:"key"`
	Source    string    `json:"source"`
	Engine    string    `json:"engine"`
	Tier      string    `json:"tier"`
	Language  string    `json:"language,omitempty"`
	Segments  []Segment `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
}

// Keyword is a term and its frequency in the transcript.
type Keyword struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Artifact is the post-processed result handed to the persister.
type Artifact struct {
	Key         string    `json:"key"`
	Source      string    `json:"source"`
	Engine      string    `json:"engine,omitempty"`
	Tier        string    `json:"tier,omitempty"`
	Language    string    `json:"language,omitempty"`
	Text        string    `json:"text"`
	Segments    []Segment `json:"segments"`
	Keywords    []Keyword `json:"keywords,omitempty"`
	WordCount   int       `json:"word_count"`
	Duration    float64   `json:"duration_seconds"`
	ProcessedAt time.Time `json:"processed_at"`
}
