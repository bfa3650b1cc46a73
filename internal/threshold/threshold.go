// Package threshold classifies meter quantities against fixed safety bands.
package threshold

import "github.com/luki/meterwatch/internal/meter"

// Severity is the classification of one value.
type Severity int

const (
	Unknown Severity = iota // value missing
	Normal
	Caution
	Critical
)

func (s Severity) String() string {
	switch s {
	case Normal:
		return "normal"
	case Caution:
		return "caution"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Voltage, current and frequency bands. Critical is checked before caution.
const (
	voltageCritLow  = 220.0
	voltageCritHigh = 250.0
	voltageWarnLow  = 230.0
	voltageWarnHigh = 245.0

	currentCrit = 50.0
	currentWarn = 40.0

	frequencyLow  = 49.5
	frequencyHigh = 50.5
)

// Classify maps a value of the given quantity to a severity. A missing
// value is always Unknown. Quantities without bands are always Normal.
func Classify(q meter.Quantity, v meter.Value) Severity {
	if !v.Valid {
		return Unknown
	}
	x := v.Float

	switch q {
	case meter.Voltage:
		switch {
		case x < voltageCritLow || x > voltageCritHigh:
			return Critical
		case x < voltageWarnLow || x > voltageWarnHigh:
			return Caution
		default:
			return Normal
		}
	case meter.Current:
		switch {
		case x > currentCrit:
			return Critical
		case x > currentWarn:
			return Caution
		default:
			return Normal
		}
	case meter.Frequency:
		if x < frequencyLow || x > frequencyHigh {
			return Critical
		}
		return Normal
	default:
		return Normal
	}
}

// Field is one field of a reading together with its classification.
type Field struct {
	Name     string         `json:"name"`
	Quantity meter.Quantity `json:"quantity"`
	Unit     string         `json:"unit,omitempty"`
	Group    meter.Group    `json:"-"`
	Value    meter.Value    `json:"value"`
	Severity Severity       `json:"severity"`
}

// ClassifyReading classifies every field of the table against r, in table
// order. Nothing is cached.
func ClassifyReading(r meter.Reading) []Field {
	specs := meter.Fields()
	out := make([]Field, 0, len(specs))
	for _, spec := range specs {
		v := r.Value(spec.Name)
		out = append(out, Field{
			Name:     spec.Name,
			Quantity: spec.Quantity,
			Unit:     spec.Unit,
			Group:    spec.Group,
			Value:    v,
			Severity: Classify(spec.Quantity, v),
		})
	}
	return out
}

// Worst returns the most severe classification in fields, or Unknown if
// fields is empty or every value is missing.
func Worst(fields []Field) Severity {
	worst := Unknown
	for _, f := range fields {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst
}
