// Package textutil provides text helpers shared by trigger names, plan titles,
// and report file names.
//
// Slug folds diacritics and punctuation into lowercase dash-separated ASCII so
// generated names are stable across platforms. SanitizeFileName strips
// characters that are unsafe in a single path segment.
package textutil
