// Package ffmpeg implements the convert stage: media is probed with ffprobe
// and its first audio stream is normalized to mono PCM WAV at the configured
// sample rate, which both transcription engines accept.
package ffmpeg
