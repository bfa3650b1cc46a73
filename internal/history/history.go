// Package history keeps a short in-memory trend of each meter field for the
// live panel's sparklines. Nothing is persisted.
package history

import (
	"math"
	"time"

	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/threshold"
)

// DefaultCapacity is ten minutes of readings at the default cadence.
const DefaultCapacity = 120

// Point is a single classified sample of one field.
type Point struct {
	Value    float64
	Time     time.Time
	Severity threshold.Severity
}

// Buffer is a ring of samples for one field. Min and Peak span every sample
// pushed, not only the retained window.
type Buffer struct {
	Quantity meter.Quantity
	Points   []Point
	Max      int // capacity
	Min      float64
	Peak     float64

	// samples per severity in the retained window
	counts [threshold.Critical + 1]int
}

// NewBuffer creates a buffer of quantity q holding at most capacity samples.
func NewBuffer(q meter.Quantity, capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		Quantity: q,
		Points:   make([]Point, 0, capacity),
		Max:      capacity,
		Min:      math.MaxFloat64,
		Peak:     -math.MaxFloat64,
	}
}

// Push classifies and appends a sample, dropping the oldest when full.
func (b *Buffer) Push(v float64, t time.Time) {
	p := Point{Value: v, Time: t, Severity: threshold.Classify(b.Quantity, meter.Some(v))}
	if len(b.Points) >= b.Max {
		b.counts[b.Points[0].Severity]--
		copy(b.Points, b.Points[1:])
		b.Points[len(b.Points)-1] = p
	} else {
		b.Points = append(b.Points, p)
	}
	b.counts[p.Severity]++

	if v < b.Min {
		b.Min = v
	}
	if v > b.Peak {
		b.Peak = v
	}
}

// Last returns the most recent sample value, or 0 if empty.
func (b *Buffer) Last() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	return b.Points[len(b.Points)-1].Value
}

// Avg returns the mean of the stored samples.
func (b *Buffer) Avg() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range b.Points {
		sum += p.Value
	}
	return sum / float64(len(b.Points))
}

// Worst returns the most severe classification in the retained window, or
// Unknown when empty.
func (b *Buffer) Worst() threshold.Severity {
	for s := threshold.Critical; s > threshold.Unknown; s-- {
		if b.counts[s] > 0 {
			return s
		}
	}
	return threshold.Unknown
}

// Excursions returns how many retained samples fall outside the normal band.
func (b *Buffer) Excursions() int {
	return b.counts[threshold.Caution] + b.counts[threshold.Critical]
}

// LastNPoints returns a copy of the last n samples.
func (b *Buffer) LastNPoints(n int) []Point {
	if n <= 0 || len(b.Points) == 0 {
		return nil
	}
	start := len(b.Points) - n
	if start < 0 {
		start = 0
	}
	out := make([]Point, len(b.Points[start:]))
	copy(out, b.Points[start:])
	return out
}

// Store holds one buffer per field name.
type Store struct {
	Data     map[string]*Buffer
	Capacity int
}

// NewStore creates a store with the given per-field capacity.
func NewStore(capacity int) *Store {
	return &Store{
		Data:     make(map[string]*Buffer),
		Capacity: capacity,
	}
}

// Record adds a sample for the named field, classified by the field's
// quantity.
func (s *Store) Record(name string, v float64, t time.Time) {
	b, ok := s.Data[name]
	if !ok {
		b = NewBuffer(meter.QuantityOf(name), s.Capacity)
		s.Data[name] = b
	}
	b.Push(v, t)
}

// Get returns the buffer for a field, or nil.
func (s *Store) Get(name string) *Buffer {
	return s.Data[name]
}
