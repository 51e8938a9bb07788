package core

// Outcome classifies how a dispatch run ended.
type Outcome string

const (
	// OutcomeSuccess means the supervisor declared FINISH.
	OutcomeSuccess Outcome = "success"
	// OutcomeInconclusive means the turn ceiling was reached without FINISH.
	// The conversation still holds the partial progress.
	OutcomeInconclusive Outcome = "inconclusive"
	// OutcomeFailure means the run was aborted (contract violation, supervisor
	// transport error or cancellation).
	OutcomeFailure Outcome = "failure"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeInconclusive, OutcomeFailure:
		return true
	}
	return false
}
