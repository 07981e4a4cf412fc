package tally

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

const DefaultPageSize = 20

// Standing is one leaderboard row.
type Standing struct {
	Rank        int    `json:"rank"`
	ExternalID  string `json:"user_id"`
	DisplayName string `json:"username"`
	Count       int    `json:"count"`
	Remaining   int    `json:"remaining"`
	Promoted    bool   `json:"promoted"`
}

// Query selects a slice of the leaderboard. Page is 1-indexed.
type Query struct {
	Search       string `json:"search"`
	HidePromoted bool   `json:"hide_promoted"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
}

type Page struct {
	Items     []Standing `json:"items"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	PageCount int        `json:"page_count"`
	Total     int        `json:"total"`
}

type Stats struct {
	Participants int `json:"participants"`
	Promoted     int `json:"promoted"`
	TotalWins    int `json:"total_wins"`
}

// Rank orders the roster by count, highest first. Equal counts keep
// first-seen order.
func Rank(r Roster) []Standing {
	entries := r.Entries()
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.Count - a.Count
	})
	out := make([]Standing, 0, len(entries))
	for i, e := range entries {
		out = append(out, Standing{
			Rank:        i + 1,
			ExternalID:  e.ExternalID,
			DisplayName: e.DisplayName,
			Count:       e.Count,
			Remaining:   e.Remaining(),
			Promoted:    e.Promoted(),
		})
	}
	return out
}

// View ranks, filters and paginates the roster. Rank always refers to the
// position in the full, unfiltered leaderboard.
func View(r Roster, q Query) Page {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	match := searchMatcher(q.Search)
	filtered := make([]Standing, 0, r.Len())
	for _, s := range Rank(r) {
		if q.HidePromoted && s.Promoted {
			continue
		}
		if !match(s) {
			continue
		}
		filtered = append(filtered, s)
	}

	pageCount := (len(filtered) + size - 1) / size
	if pageCount < 1 {
		pageCount = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}

	start := (page - 1) * size
	end := min(start+size, len(filtered))
	items := make([]Standing, 0, end-start)
	items = append(items, filtered[start:end]...)

	return Page{
		Items:     items,
		Page:      page,
		PageSize:  size,
		PageCount: pageCount,
		Total:     len(filtered),
	}
}

func searchMatcher(raw string) func(Standing) bool {
	term := strings.TrimSpace(raw)
	if term == "" {
		return func(Standing) bool { return true }
	}
	fold := cases.Fold()
	folded := fold.String(term)
	return func(s Standing) bool {
		if strings.Contains(s.ExternalID, term) {
			return true
		}
		return strings.Contains(fold.String(s.DisplayName), folded)
	}
}

func Summarize(r Roster) Stats {
	st := Stats{Participants: r.Len()}
	for _, e := range r.Entries() {
		if e.Promoted() {
			st.Promoted++
		}
		st.TotalWins += e.Count
	}
	return st
}
