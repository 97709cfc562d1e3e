package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarTag(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Already normal", raw: "IE-0041", expected: "IE-0041"},
		{name: "Lower case", raw: "ie-0041", expected: "IE-0041"},
		{name: "Surrounding space", raw: "  UK 123  ", expected: "UK 123"},
		{name: "Hash as separator", raw: "IE372#0041", expected: "IE372 0041"},
		{name: "Multiple hashes and spaces", raw: "IE ## 372   0041", expected: "IE 372 0041"},
		{name: "Tabs", raw: "DE\t0123", expected: "DE 0123"},
		{name: "Empty", raw: "", expectErr: true},
		{name: "Only separators", raw: " # ", expectErr: true},
		{name: "Too long", raw: strings.Repeat("9", MaxEarTagLength+1), expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tag, err := EarTag(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, tag)
			}
		})
	}
}

func TestYield(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Plain", raw: "12.5", expected: "12.5"},
		{name: "Comma decimal", raw: "12,75", expected: "12.75"},
		{name: "Unit suffix", raw: "18.2 L", expected: "18.2"},
		{name: "Long unit", raw: "7 litres", expected: "7"},
		{name: "Rounded", raw: "3.456", expected: "3.46"},
		{name: "Zero", raw: "0", expected: "0"},
		{name: "Negative", raw: "-1.0", expectErr: true},
		{name: "Garbage", raw: "lots", expectErr: true},
		{name: "Empty", raw: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Yield(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, got.String())
			}
		})
	}
}
