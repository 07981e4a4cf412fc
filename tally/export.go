package tally

import (
	"encoding/json"
	"time"
)

const exportPrefix = "pumpkin-winners-"

// ExportFileName names an export after the UTC date of t.
func ExportFileName(t time.Time) string {
	return exportPrefix + t.UTC().Format("2006-01-02") + ".json"
}

// MarshalExport renders the full roster as indented JSON.
func MarshalExport(r Roster) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ParseExport reads either a bare export or a stored document of the form
// {"winners": {...}}.
func ParseExport(data []byte) (Roster, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Roster{}, err
	}
	if raw, ok := probe["winners"]; ok {
		data = raw
	}
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return Roster{}, err
	}
	return r, nil
}
