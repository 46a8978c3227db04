// Package parse extracts structured data from free-text model responses.
//
// The model is treated as a black box: every parser is pure and total,
// tolerates multiple phrasing conventions, and resolves malformed input
// to an explicit conservative default instead of returning an error.
package parse
