package tally

// Cap is the win count at which a participant is promoted to Pumpkin King
// and stops accumulating further wins.
const Cap = 10

// WinRecord is one recognised row of a pasted giveaway result.
type WinRecord struct {
	ExternalID  string `json:"user_id"`
	DisplayName string `json:"username"`
}

// Participant is the persisted per-user counter.
// Count stays within 1..Cap.
type Participant struct {
	DisplayName string `json:"username"`
	Count       int    `json:"count"`
}

// Promoted reports whether the participant has reached Cap.
func (p Participant) Promoted() bool { return p.Count >= Cap }

// Remaining is the number of wins still needed to reach Cap.
func (p Participant) Remaining() int {
	if p.Count >= Cap {
		return 0
	}
	return Cap - p.Count
}

// Entry pairs an external id with its participant state.
type Entry struct {
	ExternalID string
	Participant
}
