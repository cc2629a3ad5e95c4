// Package main provides the mediaflow command-line interface.
//
// The CLI runs batches of media sources through the fetch, convert,
// transcribe, postprocess, and persist stages, inspects the run ledger, and
// manages configuration and external tool checks. Commands share a lazily
// loaded configuration; `config init` skips loading so a fresh install can
// bootstrap itself.
package main
