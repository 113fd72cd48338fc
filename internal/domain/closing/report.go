package closing

import (
	"fireblue/internal/core/id"
)

// Outcome of one workshop inside a generate call.
type Outcome string

const (
	OutcomeCreated         Outcome = "criado"
	OutcomeSkippedExisting Outcome = "existente"
	OutcomeSkippedEmpty    Outcome = "sem_movimentacao"
	OutcomeFailed          Outcome = "falha"
)

// WorkshopResult records what a generate call did for one workshop.
type WorkshopResult struct {
	WorkshopID   id.ID
	WorkshopName string
	Outcome      Outcome
	// Reason is set for failures. It never carries driver error text.
	Reason string
}

// GenerationReport is returned by Generate next to the closing.
type GenerationReport struct {
	Week string
	// NewWeek is true when this call created the weekly record.
	NewWeek bool
	// WeekClosed is true when the week was already closed and nothing was aggregated.
	WeekClosed bool
	Results    []WorkshopResult
}

func (r *GenerationReport) add(w WorkshopResult) {
	r.Results = append(r.Results, w)
}

// Count returns the number of workshops with outcome o.
func (r *GenerationReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// ByOutcome returns the results with outcome o, in processing order.
func (r *GenerationReport) ByOutcome(o Outcome) []WorkshopResult {
	var out []WorkshopResult
	for _, res := range r.Results {
		if res.Outcome == o {
			out = append(out, res)
		}
	}
	return out
}

// HasFailures reports whether any workshop failed.
func (r *GenerationReport) HasFailures() bool {
	return r.Count(OutcomeFailed) > 0
}
