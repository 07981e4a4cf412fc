package tally

import (
	"regexp"
	"strings"
	"unicode"
)

// rowPattern matches "| <n> | <id> | <name> |" anywhere in a line. Padding may
// be any Unicode space or a BOM, as tables copied out of browsers and chat
// clients often use NBSP. A name holding a literal pipe is cut at that pipe.
var rowPattern = regexp.MustCompile(
	`\|[\s\p{Zs}\x{FEFF}]*\d+[\s\p{Zs}\x{FEFF}]*\|[\s\p{Zs}\x{FEFF}]*(\d+)[\s\p{Zs}\x{FEFF}]*\|[\s\p{Zs}\x{FEFF}]*([^|]+)\|`)

func isPadding(r rune) bool { return unicode.IsSpace(r) || r == '\uFEFF' }

// Parse extracts win records from pasted text, one per matching line, in
// input order. Lines that do not match are skipped.
func Parse(text string) []WinRecord {
	records := make([]WinRecord, 0)
	if text == "" {
		return records
	}
	for _, line := range strings.Split(text, "\n") {
		m := rowPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		records = append(records, WinRecord{
			ExternalID:  m[1],
			DisplayName: strings.TrimFunc(m[2], isPadding),
		})
	}
	return records
}
