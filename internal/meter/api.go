package meter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ApiResponse models the top-level structure of the meter feed's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int       `json:"page"`
		PageSize int       `json:"pageSize"`
		Total    int       `json:"total"`
		Items    []ApiItem `json:"items"`
	} `json:"data"`
}

// ApiItem is one reading: an animal's yield for a milking day.
type ApiItem struct {
	EarTag string  `json:"earTag"`
	Date   string  `json:"date"`
	Liters Reading `json:"liters"`
	Notes  string  `json:"notes"`
}

// Reading is a litre value that meters send either as a JSON number or as
// text such as "12,5 L".
type Reading string

// UnmarshalJSON accepts numbers, strings and null.
func (r *Reading) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*r = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Reading(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("liters: %w", err)
		}
		*r = Reading(n.String())
	}
	return nil
}
