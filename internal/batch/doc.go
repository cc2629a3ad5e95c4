// Package batch applies one pipeline stage across a set of work items with a
// bounded worker pool.
//
// Every submitted item yields exactly one StageResult. Worker failures and
// panics are contained per item by the stage executor. An optional batch
// timeout stops the wait, not the work: items still outstanding when it
// elapses are reported as Timeout failures and their late completions are
// discarded. Cancelling the caller's context resolves outstanding items the
// same way, as Canceled failures. Results are gathered on the caller's goroutine, so OnResult
// callbacks and the returned Report need no locking.
package batch
