package actions

import (
	"errors"
	"fmt"

	"github.com/speedrun-hq/cyclerunner/pkg/executor"
)

// ErrUnexpected wraps failures that are neither lookup, amount nor transaction failures,
// including recovered panics
var ErrUnexpected = errors.New("unexpected action failure")

// OutcomeError reports a transaction that did not succeed
type OutcomeError struct {
	Outcome executor.Outcome
}

func (e *OutcomeError) Error() string {
	if e.Outcome.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Outcome.Label, e.Outcome.Status, e.Outcome.Err)
	}
	return fmt.Sprintf("%s %s", e.Outcome.Label, e.Outcome.Status)
}

func (e *OutcomeError) Unwrap() error {
	return e.Outcome.Err
}

func outcomeErr(outcome executor.Outcome) error {
	if outcome.Succeeded() {
		return nil
	}
	return &OutcomeError{Outcome: outcome}
}
