package sync

// Observer receives run events. Calls are made synchronously from the run
// goroutine, so implementations must return quickly and must not call back
// into the Syncer.
type Observer interface {
	// RunStarted is called once the run holds the guard token.
	RunStarted(runID string, opts RunOptions)

	// ItemProcessed is called after each item, in fetch order.
	ItemProcessed(runID string, index, total int, outcome Outcome)

	// RunCompleted is called with the final report.
	RunCompleted(report *Report)

	// RunFailed is called when the fetch aborts the run.
	RunFailed(runID string, err error)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (obs Observers) RunStarted(runID string, opts RunOptions) {
	for _, o := range obs {
		o.RunStarted(runID, opts)
	}
}

func (obs Observers) ItemProcessed(runID string, index, total int, outcome Outcome) {
	for _, o := range obs {
		o.ItemProcessed(runID, index, total, outcome)
	}
}

func (obs Observers) RunCompleted(report *Report) {
	for _, o := range obs {
		o.RunCompleted(report)
	}
}

func (obs Observers) RunFailed(runID string, err error) {
	for _, o := range obs {
		o.RunFailed(runID, err)
	}
}
