// Package whisperx adapts WhisperX, launched through uvx, into the primary
// transcription engine.
//
// Loading verifies the launcher is installed and responsive; WhisperX itself
// downloads and caches its weights on the first transcription. Each
// transcription writes JSON into a private temporary directory and the
// segments are converted to pipeline segments.
package whisperx
