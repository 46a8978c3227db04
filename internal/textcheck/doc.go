// Package textcheck provides deterministic length and structure analysis
// for essay text.
//
// Counting follows the Gaokao convention: CJK ideographs and punctuation
// marks count one unit each, a run of alphabetic letters is one unit (a word),
// a run of digits is one unit (a number), whitespace is not counted.
// The analysis is pure and never delegates to a generative model, whose
// self-reported counts are unreliable.
package textcheck
