package tally

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Roster maps external ids to participants and remembers the order in which
// ids were first seen. The zero value is an empty roster.
type Roster struct {
	order   []string
	byID    map[string]Participant
	repairs []InvalidParticipantError
}

func NewRoster() Roster {
	return Roster{byID: make(map[string]Participant)}
}

func (r Roster) Len() int { return len(r.order) }

func (r Roster) Get(externalID string) (Participant, bool) {
	p, ok := r.byID[externalID]
	return p, ok
}

// IDs returns external ids in first-seen order.
func (r Roster) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Entries returns every participant in first-seen order.
func (r Roster) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Entry{ExternalID: id, Participant: r.byID[id]})
	}
	return out
}

func (r Roster) Clone() Roster {
	out := Roster{
		order: make([]string, len(r.order)),
		byID:  make(map[string]Participant, len(r.byID)),
	}
	copy(out.order, r.order)
	for id, p := range r.byID {
		out.byID[id] = p
	}
	return out
}

func (r *Roster) put(externalID string, p Participant) {
	if r.byID == nil {
		r.byID = make(map[string]Participant)
	}
	if _, exists := r.byID[externalID]; !exists {
		r.order = append(r.order, externalID)
	}
	r.byID[externalID] = p
}

// MarshalJSON encodes the roster as a JSON object keyed by external id,
// keeping first-seen order.
func (r Roster) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Repairs lists the entries UnmarshalJSON had to fix: counts above Cap were
// clamped to Cap and counts below 1 were dropped. Rosters built any other way
// report nothing.
func (r Roster) Repairs() []InvalidParticipantError {
	out := make([]InvalidParticipantError, len(r.repairs))
	copy(out, r.repairs)
	return out
}

// UnmarshalJSON accepts the object form written by MarshalJSON. A bad count
// does not reject the whole roster; see Repairs.
func (r *Roster) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = NewRoster()
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected JSON object", ErrInvalidRoster)
	}

	out := NewRoster()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var p Participant
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("%w: participant %s: %v", ErrInvalidRoster, id, err)
		}
		switch {
		case p.Count < 1:
			out.repairs = append(out.repairs, InvalidParticipantError{ExternalID: id, Count: p.Count})
			continue
		case p.Count > Cap:
			out.repairs = append(out.repairs, InvalidParticipantError{ExternalID: id, Count: p.Count})
			p.Count = Cap
		}
		out.put(id, p)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}
