// Package meter describes a single three-phase energy meter as reported by
// the upstream dashboard endpoint: the reading snapshot, its status, and the
// static table of measured fields.
package meter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the device status reported by upstream.
type Status string

const (
	StatusActive  Status = "active"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// ParseStatus maps an upstream status string to a Status. Matching is
// case-insensitive; anything unrecognised is StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive
	case StatusWarning:
		return StatusWarning
	case StatusError:
		return StatusError
	default:
		return StatusUnknown
	}
}

// Value is a measured number that may be missing.
type Value struct {
	Float float64
	Valid bool
}

// Some returns a present value.
func Some(f float64) Value { return Value{Float: f, Valid: true} }

// Absent is the missing value.
var Absent = Value{}

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON decodes null as a missing value.
func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Absent
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Reading is one snapshot of the meter for one poll cycle. A Reading has no
// mutators; each poll decodes a fresh one.
type Reading struct {
	Slave  int
	Status Status
	values map[string]Value
}

// NewReading builds a reading from a set of field values. The map is copied.
func NewReading(slave int, status Status, values map[string]Value) Reading {
	r := Reading{
		Slave:  slave,
		Status: status,
		values: make(map[string]Value, len(values)+1),
	}
	for k, v := range values {
		r.values[k] = v
	}
	r.values[FieldSlave] = Some(float64(slave))
	return r
}

// Value returns the value of the named field, or Absent.
func (r Reading) Value(name string) Value {
	return r.values[name]
}

// UnmarshalJSON decodes one upstream record. Only fields from the static
// table are kept; unknown keys are ignored and null fields are absent.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("reading is null")
	}

	out := Reading{
		Status: StatusUnknown,
		values: make(map[string]Value, len(fieldTable)),
	}

	if s, ok := raw["status"]; ok && string(s) != "null" {
		var status string
		if err := json.Unmarshal(s, &status); err != nil {
			return fmt.Errorf("status: %w", err)
		}
		out.Status = ParseStatus(status)
	}

	for _, f := range fieldTable {
		msg, ok := raw[f.Name]
		if !ok {
			continue
		}
		var v Value
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		out.values[f.Name] = v
	}

	if slave := out.values[FieldSlave]; slave.Valid {
		out.Slave = int(slave.Float)
	}

	*r = out
	return nil
}
