package history

import (
	"testing"
	"time"

	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/threshold"
)

func TestHistory(t *testing.T) {
	h := NewBuffer(meter.Voltage, 5)

	now := time.Now()
	for i := 0; i < 7; i++ {
		h.Push(float64(230+i), now.Add(time.Duration(i)*5*time.Second))
	}

	if len(h.Points) != 5 {
		t.Errorf("expected 5 points, got %d", len(h.Points))
	}

	if h.Last() != 236.0 {
		t.Errorf("Last(): got %f, want 236.0", h.Last())
	}

	if h.Min != 230.0 {
		t.Errorf("Min: got %f, want 230.0", h.Min)
	}

	if h.Peak != 236.0 {
		t.Errorf("Peak: got %f, want 236.0", h.Peak)
	}

	if h.Avg() != 234.0 {
		t.Errorf("Avg(): got %f, want 234.0", h.Avg())
	}
}

func TestLastNPoints(t *testing.T) {
	h := NewBuffer(meter.Voltage, 100)
	base := time.Date(2026, 2, 21, 14, 0, 0, 0, time.Local)

	for i := 0; i < 120; i++ {
		h.Push(float64(230+i%10), base.Add(time.Duration(i)*5*time.Second))
	}

	pts := h.LastNPoints(5)
	if len(pts) != 5 {
		t.Fatalf("LastNPoints(5): got %d, want 5", len(pts))
	}

	last := pts[len(pts)-1]
	if last.Time != base.Add(119*5*time.Second) {
		t.Errorf("last point time: got %v, want %v", last.Time, base.Add(119*5*time.Second))
	}

	pts[0].Value = -1
	if h.Points[95].Value == -1 {
		t.Error("LastNPoints should return a copy")
	}
}

func TestStoreRecord(t *testing.T) {
	s := NewStore(3)
	now := time.Now()
	s.Record("VR", 231, now)
	s.Record("VR", 232, now)
	s.Record("IR", 12, now)

	if got := s.Get("VR"); got == nil || len(got.Points) != 2 {
		t.Fatalf("VR buffer: got %+v", got)
	}
	if got := s.Get("IR").Quantity; got != meter.Current {
		t.Errorf("IR quantity: got %v, want current", got)
	}
	if s.Get("FRE") != nil {
		t.Error("expected nil buffer for unrecorded field")
	}
	if NewBuffer(meter.Voltage, 0).Max != DefaultCapacity {
		t.Error("zero capacity should fall back to default")
	}
}

func TestBufferSeverityWindow(t *testing.T) {
	h := NewBuffer(meter.Voltage, 3)
	now := time.Now()

	if h.Worst() != threshold.Unknown {
		t.Errorf("empty Worst(): got %v, want unknown", h.Worst())
	}

	for _, v := range []float64{215, 228, 235} {
		h.Push(v, now)
	}
	if h.Points[0].Severity != threshold.Critical || h.Points[1].Severity != threshold.Caution {
		t.Errorf("point severities: got %v, %v", h.Points[0].Severity, h.Points[1].Severity)
	}
	if h.Worst() != threshold.Critical {
		t.Errorf("Worst(): got %v, want critical", h.Worst())
	}
	if h.Excursions() != 2 {
		t.Errorf("Excursions(): got %d, want 2", h.Excursions())
	}

	// evicts 215 then 228
	h.Push(236, now)
	if h.Worst() != threshold.Caution {
		t.Errorf("after one eviction Worst(): got %v, want caution", h.Worst())
	}
	h.Push(237, now)
	if h.Worst() != threshold.Normal || h.Excursions() != 0 {
		t.Errorf("after two evictions: worst %v, excursions %d", h.Worst(), h.Excursions())
	}
	if h.Min != 215 {
		t.Errorf("Min should keep evicted extremes: got %f", h.Min)
	}
}

func TestStoreClassifiesByField(t *testing.T) {
	s := NewStore(10)
	now := time.Now()
	s.Record("IR", 45, now)
	s.Record("FRE", 51, now)
	s.Record("WR", 9999, now)

	if got := s.Get("IR").Worst(); got != threshold.Caution {
		t.Errorf("IR: got %v, want caution", got)
	}
	if got := s.Get("FRE").Worst(); got != threshold.Critical {
		t.Errorf("FRE: got %v, want critical", got)
	}
	if got := s.Get("WR").Worst(); got != threshold.Normal {
		t.Errorf("WR: got %v, want normal", got)
	}
}
