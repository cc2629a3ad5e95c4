// Package deps checks that the external tools and model files the configured
// pipeline needs are present. `mediaflow deps` prints the results and
// `mediaflow run` refuses to start when a required entry is missing.
package deps
