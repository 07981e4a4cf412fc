package main

import (
	"encoding/json"
	"errors"

	"pumpkin-tracker/tally"
)

type previewRequest struct {
	Text    string       `json:"text"`
	Winners tally.Roster `json:"winners"`
}

type previewError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type previewResponse struct {
	OK      bool          `json:"ok"`
	Added   int           `json:"added"`
	Skipped int           `json:"skipped"`
	Message string        `json:"message,omitempty"`
	Winners *tally.Roster `json:"winners,omitempty"`
	Error   *previewError `json:"error,omitempty"`
}

// handlePreview merges req.text into req.winners without touching any store,
// so the page can show the result of a paste before submitting it.
func handlePreview(raw string) previewResponse {
	var req previewRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		reason := "invalid_json"
		if errors.Is(err, tally.ErrInvalidRoster) {
			reason = "invalid_roster"
		}
		return failed(reason, err.Error())
	}

	next, res, err := tally.Ingest(req.Winners, req.Text)
	switch {
	case errors.Is(err, tally.ErrEmptyInput):
		return failed("empty_input", "Please paste some giveaway data first!")
	case errors.Is(err, tally.ErrNoMatches):
		return failed("no_matches", "No winners found! Make sure the data is in the correct format.")
	case err != nil:
		return failed("merge_failed", err.Error())
	}
	return previewResponse{
		OK:      true,
		Added:   res.Added,
		Skipped: res.Skipped,
		Message: res.Summary(),
		Winners: &next,
	}
}

func failed(reason, msg string) previewResponse {
	return previewResponse{OK: false, Error: &previewError{Reason: reason, Message: msg}}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(failed("marshal_failed", err.Error()))
	}
	return string(b)
}
