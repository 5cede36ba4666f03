package sync

import "time"

// Status is the terminal state of one item within a run.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// DetailsAlreadyProcessed is the Details of a skipped outcome.
const DetailsAlreadyProcessed = "Already processed"

// Outcome is the result of processing one item.
type Outcome struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Status  Status `json:"status"`
	Details string `json:"details,omitempty"`
}

func created(key, title string) Outcome {
	return Outcome{Key: key, Title: title, Status: StatusCreated}
}

func skipped(key, title string) Outcome {
	return Outcome{Key: key, Title: title, Status: StatusSkipped, Details: DetailsAlreadyProcessed}
}

func failed(key, title string, err error) Outcome {
	return Outcome{Key: key, Title: title, Status: StatusError, Details: err.Error()}
}

// Report is the ordered result of one run. It is returned to the caller and
// never persisted.
type Report struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Outcomes  []Outcome     `json:"logs"`

	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func newReport(runID string, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: startedAt,
		Outcomes:  []Outcome{},
	}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusCreated:
		r.Created++
	case StatusSkipped:
		r.Skipped++
	case StatusError:
		r.Failed++
	}
}

// HasErrors reports whether any item failed.
func (r *Report) HasErrors() bool {
	return r.Failed > 0
}
