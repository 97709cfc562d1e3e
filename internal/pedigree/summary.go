package pedigree

import "milk-herd-backend/internal/model"

// Summary is the lightweight view of an animal returned by relationship queries.
type Summary struct {
	ID     int64  `json:"id"`
	EarTag string `json:"ear_tag"`
	Name   string `json:"name"`
}

// Summarize maps animals to summaries, never returning nil.
func Summarize(animals []model.Animal) []Summary {
	out := make([]Summary, 0, len(animals))
	for _, a := range animals {
		out = append(out, Summary{ID: a.ID, EarTag: a.EarTag, Name: a.Name})
	}
	return out
}
