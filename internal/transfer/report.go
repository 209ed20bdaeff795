package transfer

import "github.com/gosuda/vibetodo/internal/domain"

type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeOverwritten Outcome = "overwritten"
	OutcomeRejected    Outcome = "rejected"
)

// RecordResult is what happened to one input record. Record is the 1-based
// position in the JSON task array, or the physical line number for CSV.
type RecordResult struct {
	Record   int           `json:"record"`
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	SourceID string        `json:"source_id,omitempty"`
	TaskID   domain.TaskID `json:"task_id,omitempty"`
}

// Report collects per-record results in input order.
type Report struct {
	ID       string         `json:"id"`
	Format   Format         `json:"format"`
	Strategy Strategy       `json:"strategy"`
	Results  []RecordResult `json:"results"`
}

type Counts struct {
	Created     int `json:"created"`
	Skipped     int `json:"skipped"`
	Overwritten int `json:"overwritten"`
	Rejected    int `json:"rejected"`
}

func (c Counts) Total() int {
	return c.Created + c.Skipped + c.Overwritten + c.Rejected
}

func (r *Report) Counts() Counts {
	var c Counts
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeCreated:
			c.Created++
		case OutcomeSkipped:
			c.Skipped++
		case OutcomeOverwritten:
			c.Overwritten++
		case OutcomeRejected:
			c.Rejected++
		}
	}
	return c
}

// Rejections returns only the rejected results.
func (r *Report) Rejections() []RecordResult {
	var out []RecordResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeRejected {
			out = append(out, res)
		}
	}
	return out
}

func (r *Report) add(res RecordResult) {
	r.Results = append(r.Results, res)
}
