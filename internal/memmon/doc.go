// Package memmon samples system memory pressure on a fixed cadence and
// notifies callers when usage crosses a threshold.
//
// A Monitor owns exactly one sampling loop. Start spawns it, Stop cancels it
// and blocks until the loop has exited, so no sample is taken after Stop
// returns. Sampling errors are logged and the tick is skipped.
//
// Throttle couples breach and recovery notifications to an admission gate
// that batch dispatchers consult before starting new work.
package memmon
