package tally

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func rosterOf(t *testing.T, entries ...Entry) Roster {
	t.Helper()
	r := NewRoster()
	for _, e := range entries {
		r.put(e.ExternalID, e.Participant)
	}
	return r
}

func TestMerge_NewParticipant(t *testing.T) {
	got, res := Merge(NewRoster(), []WinRecord{{ExternalID: "1", DisplayName: "a"}})
	if res.Added != 1 || res.Skipped != 0 {
		t.Fatalf("expected added=1 skipped=0, got %+v", res)
	}
	want := []Entry{{ExternalID: "1", Participant: Participant{DisplayName: "a", Count: 1}}}
	if diff := cmp.Diff(want, got.Entries()); diff != "" {
		t.Fatalf("roster mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_CappedParticipantUntouched(t *testing.T) {
	cur := rosterOf(t, Entry{ExternalID: "1", Participant: Participant{DisplayName: "a", Count: Cap}})
	got, res := Merge(cur, []WinRecord{{ExternalID: "1", DisplayName: "renamed"}})
	if res.Added != 0 || res.Skipped != 1 {
		t.Fatalf("expected added=0 skipped=1, got %+v", res)
	}
	p, _ := got.Get("1")
	if p.Count != Cap || p.DisplayName != "a" {
		t.Fatalf("capped participant changed: %+v", p)
	}
}

func TestMerge_IncrementOverwritesName(t *testing.T) {
	cur := rosterOf(t, Entry{ExternalID: "7", Participant: Participant{DisplayName: "old", Count: 3}})
	got, res := Merge(cur, []WinRecord{{ExternalID: "7", DisplayName: "new"}})
	if res.Added != 1 {
		t.Fatalf("expected added=1, got %+v", res)
	}
	p, _ := got.Get("7")
	if p.Count != 4 || p.DisplayName != "new" {
		t.Fatalf("unexpected participant %+v", p)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	cur := rosterOf(t, Entry{ExternalID: "1", Participant: Participant{DisplayName: "a", Count: 1}})
	Merge(cur, []WinRecord{{ExternalID: "1", DisplayName: "b"}, {ExternalID: "2", DisplayName: "c"}})
	if cur.Len() != 1 {
		t.Fatalf("input roster grew to %d", cur.Len())
	}
	if p, _ := cur.Get("1"); p.Count != 1 || p.DisplayName != "a" {
		t.Fatalf("input participant mutated: %+v", p)
	}
}

func TestMerge_EmptyBatch(t *testing.T) {
	cur := rosterOf(t, Entry{ExternalID: "1", Participant: Participant{DisplayName: "a", Count: 2}})
	got, res := Merge(cur, nil)
	if res != (MergeResult{}) {
		t.Fatalf("expected zero result, got %+v", res)
	}
	if diff := cmp.Diff(cur.Entries(), got.Entries()); diff != "" {
		t.Fatalf("roster changed (-want +got):\n%s", diff)
	}
}

func TestMerge_CapIsCumulativeWithinBatch(t *testing.T) {
	cur := rosterOf(t, Entry{ExternalID: "9", Participant: Participant{DisplayName: "x", Count: Cap - 2}})
	batch := make([]WinRecord, 5)
	for i := range batch {
		batch[i] = WinRecord{ExternalID: "9", DisplayName: "x"}
	}
	got, res := Merge(cur, batch)
	if res.Added != 2 || res.Skipped != 3 {
		t.Fatalf("expected added=2 skipped=3, got %+v", res)
	}
	if res.Added+res.Skipped != len(batch) {
		t.Fatalf("added+skipped should equal batch size")
	}
	if p, _ := got.Get("9"); p.Count != Cap {
		t.Fatalf("expected count %d, got %d", Cap, p.Count)
	}
}

func TestMerge_RepeatedBatchesNeverDecreaseAndCap(t *testing.T) {
	batch := Parse("| 1 | 1 | a |\n| 2 | 2 | b |\n| 3 | 1 | a |\n| 4 | 3 | c |")
	r := NewRoster()
	prev := map[string]int{}
	for round := 0; round < 8; round++ {
		r, _ = Merge(r, batch)
		for _, e := range r.Entries() {
			if e.Count < prev[e.ExternalID] {
				t.Fatalf("round %d: count for %s decreased", round, e.ExternalID)
			}
			if e.Count > Cap {
				t.Fatalf("round %d: count for %s exceeds cap: %d", round, e.ExternalID, e.Count)
			}
			prev[e.ExternalID] = e.Count
		}
	}
	if p, _ := r.Get("1"); p.Count != Cap {
		t.Fatalf("expected id 1 capped, got %d", p.Count)
	}
}

func TestMerge_ClearThenMergeRestarts(t *testing.T) {
	r, _ := Merge(NewRoster(), Parse("| 1 | 5 | e |\n| 2 | 5 | e |"))
	if p, _ := r.Get("5"); p.Count != 2 {
		t.Fatalf("expected count 2, got %d", p.Count)
	}
	r, _ = Merge(NewRoster(), Parse("| 1 | 5 | e |"))
	if p, _ := r.Get("5"); p.Count != 1 {
		t.Fatalf("expected restart at 1, got %d", p.Count)
	}
}

func TestIngest_Errors(t *testing.T) {
	cur := rosterOf(t, Entry{ExternalID: "1", Participant: Participant{DisplayName: "a", Count: 1}})

	if _, _, err := Ingest(cur, "  \n\t"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	got, res, err := Ingest(cur, "nothing to see here")
	if !errors.Is(err, ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches, got %v", err)
	}
	if res != (MergeResult{}) || got.Len() != 1 {
		t.Fatalf("expected unchanged state on no matches")
	}
}

func TestIngest_Merges(t *testing.T) {
	got, res, err := Ingest(NewRoster(), "| 1 | 10 | ann |\n| 2 | 20 | ben |")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Added != 2 || got.Len() != 2 {
		t.Fatalf("unexpected result %+v len=%d", res, got.Len())
	}
}

func TestMergeResult_Summary(t *testing.T) {
	cases := []struct {
		res  MergeResult
		want string
	}{
		{MergeResult{Added: 3}, "Added 3 pumpkin(s)!"},
		{MergeResult{Added: 0, Skipped: 1}, "Added 0 pumpkin(s)! (1 already Pumpkin King)"},
		{MergeResult{Added: 2, Skipped: 4}, "Added 2 pumpkin(s)! (4 already Pumpkin Kings)"},
	}
	for _, c := range cases {
		if got := c.res.Summary(); got != c.want {
			t.Fatalf("Summary(%+v) = %q, want %q", c.res, got, c.want)
		}
	}
}
