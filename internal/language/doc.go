// Package language normalizes user-supplied language names and codes for the
// transcription engines and the post-processor.
//
// Parsing is delegated to golang.org/x/text/language; this package adds the
// English word forms ("german", "japanese") users tend to type into config
// files and the "auto" sentinel meaning "let the engine detect it".
package language
