// Package textutil provides token-frequency fingerprints and cosine
// similarity scoring used to compare release titles.
//
// Tokenization lowercases text, splits on non-alphanumeric characters, and
// keeps tokens of two or more characters so short base-name words survive
// while single stray characters do not.
package textutil
