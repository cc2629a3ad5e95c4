// Package config loads, normalizes, and validates mediaflow configuration data.
//
// It supplies repository defaults rooted in the XDG base directories, expands
// user paths (including tilde shortcuts), reads TOML files (or YAML when the
// file ends in .yaml/.yml), and honours environment fallbacks such as HF_TOKEN
// and MINIO_ACCESS_KEY. The Config type is built once at startup and threaded
// through every constructor; nothing in the pipeline reads settings globally.
package config
