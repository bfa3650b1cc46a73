package poller

import (
	"time"

	"github.com/luki/meterwatch/internal/meter"
	"github.com/luki/meterwatch/internal/threshold"
)

// Phase is the lifecycle phase of the display.
type Phase int

const (
	Loading Phase = iota // no cycle has completed yet
	Ready                // a reading is available, possibly stale
	Error                // the latest cycle failed and no reading was ever obtained
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the poll lifecycle.
type State struct {
	Phase       Phase
	Reading     meter.Reading
	HasReading  bool
	LastSuccess time.Time // zero until the first success
	LastAttempt time.Time // completion time of the latest applied cycle
	LastErr     error     // nil after a success
	Failures    int       // consecutive failures since the last success
	Seq         uint64    // sequence number of the latest applied cycle
}

// Fields classifies the current reading. It is recomputed on every call.
func (s State) Fields() []threshold.Field {
	if !s.HasReading {
		return nil
	}
	return threshold.ClassifyReading(s.Reading)
}

// Age is how old the reading is at now. It is zero without a reading.
func (s State) Age(now time.Time) time.Duration {
	if !s.HasReading || s.LastSuccess.IsZero() {
		return 0
	}
	return now.Sub(s.LastSuccess)
}

// Stale reports whether the reading is older than after.
func (s State) Stale(now time.Time, after time.Duration) bool {
	return s.HasReading && after > 0 && s.Age(now) > after
}
