package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFetch         = errors.New("fetch error")
	ErrConversion    = errors.New("conversion error")
	ErrModelLoad     = errors.New("model load error")
	ErrTranscription = errors.New("transcription error")
	ErrPostProcess   = errors.New("post-process error")
	ErrPersist       = errors.New("persist error")
	ErrTimeout       = errors.New("timeout")
	ErrCanceled      = errors.New("canceled")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Kind is the error classification recorded in batch reports.
type Kind string

const (
	KindNone          Kind = ""
	KindFetch         Kind = "FetchError"
	KindConversion    Kind = "ConversionError"
	KindModelLoad     Kind = "ModelLoadError"
	KindTranscription Kind = "TranscriptionError"
	KindPostProcess   Kind = "PostProcessError"
	KindPersist       Kind = "PersistError"
	KindTimeout       Kind = "Timeout"
	KindCanceled      Kind = "Canceled"
)

var kindMarkers = []struct {
	marker error
	kind   Kind
}{
	{ErrTimeout, KindTimeout},
	{ErrCanceled, KindCanceled},
	{ErrModelLoad, KindModelLoad},
	{ErrFetch, KindFetch},
	{ErrConversion, KindConversion},
	{ErrTranscription, KindTranscription},
	{ErrPostProcess, KindPostProcess},
	{ErrPersist, KindPersist},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err by the first kind marker it carries. Errors without a
// kind marker (including generic external-tool failures) get fallback.
func KindOf(err error, fallback Kind) Kind {
	if err == nil {
		return KindNone
	}
	for _, km := range kindMarkers {
		if errors.Is(err, km.marker) {
			return km.kind
		}
	}
	return fallback
}

// IsRetryable reports whether err is worth another attempt. Validation and
// configuration problems never are.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
