// Package services defines shared utilities consumed by the pipeline stage
// workers and the external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp work item keys, stage names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified into report kinds (FetchError, TranscriptionError, ...)
//     with errors.Is instead of string matching.
//
// Adapters under this directory (ytdlp, ffmpeg, whisperx, whispercpp) tag
// their failures with these markers so the stage executor can classify them.
package services
