package tally

import (
	"fmt"
	"strings"
)

// MergeResult reports how a batch was applied.
type MergeResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Summary is the user-facing message for a merged batch.
func (r MergeResult) Summary() string {
	msg := fmt.Sprintf("Added %d pumpkin(s)!", r.Added)
	if r.Skipped > 0 {
		plural := ""
		if r.Skipped > 1 {
			plural = "s"
		}
		msg += fmt.Sprintf(" (%d already Pumpkin King%s)", r.Skipped, plural)
	}
	return msg
}

// Merge applies records in order and returns the updated roster. current is
// left untouched. The cap is checked against the in-progress roster, so an id
// repeated inside one batch stops counting once it reaches Cap.
func Merge(current Roster, records []WinRecord) (Roster, MergeResult) {
	next := current.Clone()
	var res MergeResult
	for _, rec := range records {
		p, ok := next.byID[rec.ExternalID]
		switch {
		case !ok:
			next.put(rec.ExternalID, Participant{DisplayName: rec.DisplayName, Count: 1})
			res.Added++
		case p.Count < Cap:
			p.Count++
			p.DisplayName = rec.DisplayName
			next.byID[rec.ExternalID] = p
			res.Added++
		default:
			res.Skipped++
		}
	}
	return next, res
}

// Ingest parses pasted text and merges it into current. Blank text and text
// without a single recognised row are rejected and leave current as is.
func Ingest(current Roster, text string) (Roster, MergeResult, error) {
	if strings.TrimSpace(text) == "" {
		return current, MergeResult{}, ErrEmptyInput
	}
	records := Parse(text)
	if len(records) == 0 {
		return current, MergeResult{}, ErrNoMatches
	}
	next, res := Merge(current, records)
	return next, res, nil
}
