// Package persist writes final artifacts. Every backend leaves a JSON file at
// the path the existence gate checks for the persist stage, and that file is
// written last so an interrupted save is retried on the next run.
//
// The filesystem backend writes the artifact JSON with plain-text and SRT
// renditions beside it. The MinIO backend uploads the same three renditions
// and records a receipt locally.
package persist
