// Package postprocess derives the final artifact from a transcript: the
// joined text, its word count, the media duration covered by segments, and
// the most frequent keywords after stop words are removed.
package postprocess
