package parse

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxEarTagLength matches the ear_tag column size.
const MaxEarTagLength = 50

var (
	spaceRe = regexp.MustCompile(`\s+`)
	yieldRe = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?)\s*(?:l|ltr|litres|liters)?$`)
)

// EarTag normalises a raw ear tag as printed on the tag or typed by an operator.
// '#' is treated as a separator, whitespace runs collapse to a single space and
// letters are upper-cased, so "ie 372#0041 " and "IE 372 0041" are the same tag.
func EarTag(raw string) (string, error) {
	s := strings.ReplaceAll(raw, "#", " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	s = strings.ToUpper(s)

	if s == "" {
		return "", fmt.Errorf("ear tag is empty: %q", raw)
	}
	if utf8.RuneCountInString(s) > MaxEarTagLength {
		return "", fmt.Errorf("ear tag longer than %d characters: %q", MaxEarTagLength, raw)
	}
	return s, nil
}

// Yield parses a litre reading such as "12.5", "12,5" or "12.5 L" and rounds
// it to two decimal places.
func Yield(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	m := yieldRe.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, fmt.Errorf("unable to parse yield: %q", raw)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse yield %q: %w", raw, err)
	}
	return d.Round(2), nil
}
