package postprocess

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mediaflow/internal/config"
	langpkg "mediaflow/internal/language"
	"mediaflow/internal/logging"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
	"mediaflow/internal/textutil"
)

// Processor implements pipeline.PostProcessor.
type Processor struct {
	cfg    config.PostProcess
	now    func() time.Time
	logger *slog.Logger
}

// New builds a processor from the postprocess section.
func New(cfg config.PostProcess, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "postprocess"),
	}
}

// Process turns a transcript into an artifact. Transcripts without speech
// produce an artifact with empty text.
func (p *Processor) Process(ctx context.Context, transcript pipeline.Transcript) (pipeline.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Artifact{}, services.Wrap(services.ErrPostProcess, "postprocess", "", transcript.Key, err)
	}
	if strings.TrimSpace(transcript.Key) == "" {
		return pipeline.Artifact{}, services.Wrap(services.ErrPostProcess, "postprocess", "validate", "transcript has no key", services.ErrValidation)
	}

	parts := make([]string, 0, len(transcript.Segments))
	var duration float64
	for _, seg := range transcript.Segments {
		if seg.End < seg.Start {
			return pipeline.Artifact{}, services.Wrap(services.ErrPostProcess, "postprocess", "validate",
				"segment ends before it starts", services.ErrValidation)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		duration = max(duration, seg.End)
	}
	text := strings.Join(parts, " ")

	lang := p.cfg.Language
	if lang == "" || lang == langpkg.Auto {
		lang = transcript.Language
	}
	iso2 := langpkg.ToISO2(lang)
	tokens := textutil.Tokenize(text, p.cfg.MinWordLength)
	top := textutil.TopTerms(textutil.CountTerms(tokens, textutil.StopWords(iso2)), p.cfg.KeywordLimit)

	keywords := make([]pipeline.Keyword, 0, len(top))
	for _, term := range top {
		keywords = append(keywords, pipeline.Keyword{Term: term.Text, Count: term.Count})
	}

	artifact := pipeline.Artifact{
		Key:         transcript.Key,
		Source:      transcript.Source,
		Engine:      transcript.Engine,
		Tier:        transcript.Tier,
		Language:    iso2,
		Text:        text,
		Segments:    transcript.Segments,
		Keywords:    keywords,
		WordCount:   len(strings.Fields(text)),
		Duration:    duration,
		ProcessedAt: p.now().UTC(),
	}
	p.logger.Debug("transcript processed",
		logging.String(logging.FieldItemKey, transcript.Key),
		logging.Int("word_count", artifact.WordCount),
		logging.Int("keywords", len(keywords)),
	)
	return artifact, nil
}
