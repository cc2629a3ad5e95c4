// Package modelload implements two-tier capability loading: a primary
// provider is tried first and a fallback provider is used when the primary
// cannot initialize.
//
// Load is serialized by the Loader and never retries a tier on its own; a
// later Load call starts again from the primary. The resulting Handle tags
// the tier that succeeded and Invoke dispatches to the wrapped model,
// serializing calls when the provider is not reentrant.
package modelload
