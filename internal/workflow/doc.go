// Package workflow drives media items through the fixed stage sequence
// fetch, convert, transcribe, postprocess, persist.
//
// The Orchestrator derives a stable key for each source, resumes every item
// past the furthest artifact already on disk, and then runs one bounded batch
// per stage over the items still eligible for it. Results are applied to the
// item state machine on the orchestrator goroutine between stages, so items
// never regress and a failed item stops without affecting its neighbours.
//
// The transcription model is loaded lazily, once per run, and only when some
// item still needs a transcript. A model load failure is fatal for the run.
// Fetches are wrapped in the retry policy, a memory monitor throttles batch
// dispatch under pressure, and every stage result is recorded in the run
// ledger when one is configured.
//
// Wire builds a ready Orchestrator from configuration; tests construct one
// directly from Dependencies with fake collaborators.
package workflow
