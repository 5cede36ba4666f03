package bridge

import "errors"

// Errors returned by the adapters and the orchestrator.
//
// Callers classify them with errors.Is:
//
//	if errors.Is(err, bridge.ErrSourceUnavailable) {
//	    // the whole run was aborted before any item was processed
//	}
var (
	// ErrSourceUnavailable is returned when listing collections or fetching
	// items from the Source fails. It is fatal to a sync run.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSinkUnavailable is returned when a Sink probe or listing fails.
	// Only connection tests and collection listings produce it.
	ErrSinkUnavailable = errors.New("sink unavailable")

	// ErrSinkWriteFailed is returned when creating a single document in the
	// Sink fails. The orchestrator records it against the item and moves on.
	ErrSinkWriteFailed = errors.New("sink write failed")

	// ErrEnrichmentFailed marks a failed summary request. It never leaves
	// the enrichment adapter, which degrades to a placeholder instead.
	ErrEnrichmentFailed = errors.New("enrichment failed")

	// ErrConfigInvalid is returned when required credentials are missing.
	// It is detected before any network call.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// IsFatal returns true if the error aborts a whole sync run rather than a
// single item.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrSourceUnavailable) {
		return true
	}

	if errors.Is(err, ErrConfigInvalid) {
		return true
	}

	return false
}

// IsItemLevel returns true if the error only affects the item being
// processed.
func IsItemLevel(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSinkWriteFailed)
}
