// Package textutil provides the text processing behind keyword extraction.
//
// Tokenization case-folds with golang.org/x/text/cases so that "Straße" and
// "STRASSE" count as one term, splits on anything that is not a letter or
// digit, and drops short tokens and bare numbers. Term counts are ranked by
// frequency with ties broken alphabetically so output is deterministic.
package textutil
