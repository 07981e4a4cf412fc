package tally

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_EmptyInput(t *testing.T) {
	got := Parse("")
	if got == nil {
		t.Fatalf("expected empty non-nil slice")
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestParse_SingleRow(t *testing.T) {
	got := Parse("| 1 | 4242 | alice |")
	want := []WinRecord{{ExternalID: "4242", DisplayName: "alice"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SkipsNoiseAndKeepsOrder(t *testing.T) {
	text := "Giveaway results\n" +
		"| # | ID | Username |\n" +
		"|---|----|----------|\n" +
		"| 1 | 111 |  Bob Builder  |\n" +
		"random chatter\n" +
		"|2|222|carol|\r\n" +
		"prefix | 3 | 333 | dave | trailing | junk |\n"

	got := Parse(text)
	want := []WinRecord{
		{ExternalID: "111", DisplayName: "Bob Builder"},
		{ExternalID: "222", DisplayName: "carol"},
		{ExternalID: "333", DisplayName: "dave"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RejectsNonNumericColumns(t *testing.T) {
	for _, line := range []string{
		"| a | 4242 | alice |",
		"| 1 | 42x2 | alice |",
		"| 1 | 4242 |",
		"1 | 4242 | alice",
	} {
		if got := Parse(line); len(got) != 0 {
			t.Fatalf("line %q: expected no records, got %+v", line, got)
		}
	}
}

func TestParse_ExternalIDsAreDigits(t *testing.T) {
	text := "| 1 | 007 | x |\n| 99 | 123456789012345678 | y |\n| 1 | -5 | z |"
	for _, rec := range Parse(text) {
		if rec.ExternalID == "" {
			t.Fatalf("empty external id")
		}
		for _, r := range rec.ExternalID {
			if r < '0' || r > '9' {
				t.Fatalf("external id %q contains non-digit", rec.ExternalID)
			}
		}
	}
}

func TestParse_NameWithPipeTruncates(t *testing.T) {
	got := Parse("| 1 | 5 | left|right |")
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].DisplayName != "left" {
		t.Fatalf("expected name truncated at pipe, got %q", got[0].DisplayName)
	}
}

func TestParse_UnicodeWhitespace(t *testing.T) {
	text := "|\u00a01\u00a0|\u00a04242\u00a0|\u00a0alice\u00a0|\n" +
		"\ufeff| 2 | 777 |\u2009bob\ufeff|\n" +
		"|\u30001\u3000|\u3000888\u3000|\u3000carol\u3000|"

	got := Parse(text)
	want := []WinRecord{
		{ExternalID: "4242", DisplayName: "alice"},
		{ExternalID: "777", DisplayName: "bob"},
		{ExternalID: "888", DisplayName: "carol"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}
