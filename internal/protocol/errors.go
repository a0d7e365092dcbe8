package protocol

import "fmt"

// ProcessingError indicates the backend could not be reached or failed to
// answer. No interview state has advanced, so the exchange can be retried.
type ProcessingError struct {
	Backend string
	Status  int
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s failed (status %d): %v", e.Backend, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s failed: %v", e.Backend, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// ContractViolationError indicates the backend answered with something that
// is not a valid StructuredResult. Raw holds the offending payload.
type ContractViolationError struct {
	Backend string
	Raw     string
	Err     error
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("backend %s violated the interview contract: %v", e.Backend, e.Err)
}

func (e *ContractViolationError) Unwrap() error { return e.Err }
