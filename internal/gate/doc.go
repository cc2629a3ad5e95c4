// Package gate derives canonical artifact paths for work items and answers
// whether a stage's output already exists.
//
// Paths are a pure function of the sanitized item key and the stage, so the
// same source always maps to the same files across runs. The only I/O is a
// stat of the expected path.
package gate
