// Package whispercpp adapts the whisper.cpp CLI into the fallback
// transcription engine. It runs fully offline against a ggml model file.
package whispercpp
