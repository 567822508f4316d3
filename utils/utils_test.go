// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerAsciiFolding(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello world"},
		{"  Spaces  ", "spaces"},
		{"Áéíóú", "aeiou"},
		{"Ñandú", "nandu"},
		{"Crème Brûlée", "creme brulee"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, LowerASCIIFolding(tc.input))
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hcp_id", "hcp_id"},
		{"HCP ID", "hcp_id"},
		{"\ufeffLatitude", "latitude"},
		{"Código Postal", "codigo_postal"},
		{" zip-code ", "zip_code"},
		{"trx.count", "trx_count"},
		{"a  -  b", "a_b"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeHeader(tc.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"trx_count", "visits"}, SplitList("trx_count, Visits,,"))
	assert.Nil(t, SplitList(""))
}

func TestAnyToStringSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []string
		ok       bool
	}{
		{"nil", nil, nil, true},
		{"[]string", []string{"a", "b"}, []string{"a", "b"}, true},
		{"[]any string", []any{"a", "b"}, []string{"a", "b"}, true},
		{"[]any mixed invalid", []any{"a", 1}, nil, false},
		{"not a slice", 123, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := AnyToStringSlice(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestAnyToFloat64Slice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []float64
		ok       bool
	}{
		{"nil", nil, nil, true},
		{"[]float64", []float64{1.5, 2}, []float64{1.5, 2}, true},
		{"[]any float64", []any{1.5, 2.0}, []float64{1.5, 2}, true},
		{"[]any mixed numbers", []any{float32(0.5), int64(3), int32(4)}, []float64{0.5, 3, 4}, true},
		{"[]any string", []any{1.0, "x"}, nil, false},
		{"not a slice", "1.0", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := AnyToFloat64Slice(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, res)
		})
	}
}

func TestFormatInt(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{12, "12"},
		{123, "123"},
		{1234, "1,234"},
		{12345, "12,345"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{-1, "-1"},
		{-12, "-12"},
		{-123, "-123"},
		{-1234, "-1,234"},
		{-12345, "-12,345"},
		{-123456, "-123,456"},
		{-1234567, "-1,234,567"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatInt(tc.input))
		})
	}
}
