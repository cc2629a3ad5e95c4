// Package pipeline defines the domain model shared by the orchestration
// engine: stages, work items, stage results, transcript segments, and the
// narrow collaborator interfaces (Fetcher, Converter, Transcriber,
// PostProcessor, Persister) that the external tool adapters implement.
//
// Stages run in a fixed order and a WorkItem never moves backwards through
// them. A failed item stops progressing but never blocks its siblings.
package pipeline
