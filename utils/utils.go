// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package utils holds string helpers shared by the CLI and the segmentation
// pipeline.
package utils

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// NormalizeHeader turns a CSV header into a column key: folded, with any run
// of spaces, dashes or dots replaced by a single underscore.
// "Código Postal" becomes "codigo_postal".
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = LowerASCIIFolding(s)

	var b strings.Builder

	sep := false

	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '_' || r == '\t':
			sep = true
		default:
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}

			sep = false

			b.WriteRune(r)
		}
	}

	return b.String()
}

// SplitList splits a comma separated list, normalizing every element as a
// header and dropping empty ones.
func SplitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = NormalizeHeader(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// AnyToStringSlice converts a DuckDB LIST value to []string safely.
func AnyToStringSlice(v any) ([]string, bool) {
	if v == nil {
		return nil, true
	}

	if i, ok := v.([]string); ok {
		return i, true
	}

	if i, ok := v.([]any); ok {
		s := make([]string, len(i))

		for j, e := range i {
			val, ok := e.(string)
			if !ok {
				return nil, false
			}

			s[j] = val
		}

		return s, true
	}

	return nil, false
}

// AnyToFloat64Slice converts a DuckDB LIST value to []float64 safely.
func AnyToFloat64Slice(v any) ([]float64, bool) {
	if v == nil {
		return nil, true
	}

	if i, ok := v.([]float64); ok {
		return i, true
	}

	if i, ok := v.([]any); ok {
		s := make([]float64, len(i))

		for j, e := range i {
			switch val := e.(type) {
			case float64:
				s[j] = val
			case float32:
				s[j] = float64(val)
			case int64:
				s[j] = float64(val)
			case int32:
				s[j] = float64(val)
			default:
				return nil, false
			}
		}

		return s, true
	}

	return nil, false
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	numOfDigits := len(in)
	if n < 0 {
		numOfDigits-- // First character is the - sign (not a digit)
	}

	numOfCommas := (numOfDigits - 1) / 3

	out := make([]byte, len(in)+numOfCommas)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}
