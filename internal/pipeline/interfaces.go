package pipeline

import "context"

// Fetcher retrieves the raw media for an identity into dest.
type Fetcher interface {
	Fetch(ctx context.Context, source, dest string) (string, error)
}

// Converter normalizes media into speech-ready audio at dest.
type Converter interface {
	Convert(ctx context.Context, source, dest string) (string, error)
}

// Transcriber turns an audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
	Name() string
}

// PostProcessor derives the final artifact from a transcript.
type PostProcessor interface {
	Process(ctx context.Context, transcript Transcript) (Artifact, error)
}

// Persister writes the final artifact to destPath.
type Persister interface {
	Save(ctx context.Context, artifact Artifact, destPath string) error
}

// Worker performs one stage for one item. dest is the artifact path the
// existence gate will look for; the worker returns the path it produced.
type Worker func(ctx context.Context, item WorkItem, dest string) (string, error)
