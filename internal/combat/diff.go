package combat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is returned when a self-reported state lacks a tracked field.
var ErrMissingField = errors.New("missing field")

// Tracked field names, in wire order.
const (
	FieldHP       = "hp"
	FieldBullets  = "bullets"
	FieldBombs    = "bombs"
	FieldShieldHP = "shield_hp"
	FieldDeaths   = "deaths"
	FieldShields  = "shields"
)

var trackedFields = []string{FieldHP, FieldBullets, FieldBombs, FieldShieldHP, FieldDeaths, FieldShields}

// Reported is a client's self-reported game state, {"p1": {...}, "p2": {...}}.
// Player objects are kept raw; only the tracked fields are resolved when
// diffing, so extra keys at either level are ignored.
type Reported map[string]json.RawMessage

// Fields decodes the reported object for one player. Values keep their JSON
// form, with numbers as json.Number.
func (r Reported) Fields(key string) (map[string]any, error) {
	raw, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMissingField, key)
	}
	return fields, nil
}

func numericField(fields map[string]any, name string) (float64, bool) {
	switch value := fields[name].(type) {
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case float64:
		return value, true
	default:
		return 0, false
	}
}

// FieldDiff maps a field to authoritative minus reported. Only exact zero
// deltas are omitted.
type FieldDiff map[string]float64

// Diff is the per-player difference report.
type Diff struct {
	P1 FieldDiff `json:"p1"`
	P2 FieldDiff `json:"p2"`
}

// Empty reports whether both players agree with the authoritative state.
func (d Diff) Empty() bool {
	return len(d.P1) == 0 && len(d.P2) == 0
}

func (d Diff) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%v", map[string]FieldDiff{"p1": d.P1, "p2": d.P2})
	}
	return string(data)
}

func (s PlayerSnapshot) values() map[string]int {
	return map[string]int{
		FieldHP:       s.HP,
		FieldBullets:  s.Bullets,
		FieldBombs:    s.Bombs,
		FieldShieldHP: s.ShieldHP,
		FieldDeaths:   s.Deaths,
		FieldShields:  s.Shields,
	}
}

// Reported converts a snapshot into the shape a client reports, which is
// handy for clients and tests that mirror the authoritative state.
func (s Snapshot) Reported() Reported {
	out := make(Reported, 2)
	for key, player := range map[string]PlayerSnapshot{"p1": s.P1, "p2": s.P2} {
		data, err := json.Marshal(player.values())
		if err != nil {
			continue
		}
		out[key] = data
	}
	return out
}

// Diff compares the authoritative state with a self-reported one.
func (s *State) Diff(reported Reported) (Diff, error) {
	snapshot := s.Snapshot()
	p1, err := diffPlayer("p1", snapshot.P1, reported)
	if err != nil {
		return Diff{}, err
	}
	p2, err := diffPlayer("p2", snapshot.P2, reported)
	if err != nil {
		return Diff{}, err
	}
	return Diff{P1: p1, P2: p2}, nil
}

func diffPlayer(key string, authoritative PlayerSnapshot, reported Reported) (FieldDiff, error) {
	fields, err := reported.Fields(key)
	if err != nil {
		return nil, err
	}
	values := authoritative.values()
	diff := make(FieldDiff)
	for _, name := range trackedFields {
		got, ok := numericField(fields, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, key, name)
		}
		if delta := float64(values[name]) - got; delta != 0 {
			diff[name] = delta
		}
	}
	return diff, nil
}
