package tally

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput    = errors.New("no giveaway data pasted")
	ErrNoMatches     = errors.New("no winners found in pasted data")
	ErrInvalidRoster = errors.New("invalid roster")
)

// InvalidParticipantError describes a stored entry whose count is outside
// 1..Cap.
type InvalidParticipantError struct {
	ExternalID string
	Count      int
}

func (e *InvalidParticipantError) Error() string {
	return fmt.Sprintf("participant %s has count %d outside 1..%d", e.ExternalID, e.Count, Cap)
}

func (e *InvalidParticipantError) Unwrap() error { return ErrInvalidRoster }
