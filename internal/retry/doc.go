// Package retry wraps fallible operations with bounded attempts and
// exponential backoff.
//
// A Policy holds only immutable settings, so a single value can be shared by
// any number of concurrent callers. The last operation error is returned
// unchanged so callers can classify it with errors.Is.
package retry
