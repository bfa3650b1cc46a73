package meter

// Summary holds the quick stats shown under the panel.
type Summary struct {
	AvgVoltage Value
	AvgCurrent Value
	TotalPower Value
	Frequency  Value
}

// Summarize derives the quick stats from a reading. Missing phases are left
// out of averages and sums; if every phase is missing the stat is Absent.
func (r Reading) Summarize() Summary {
	return Summary{
		AvgVoltage: r.mean("VR", "VY", "VB"),
		AvgCurrent: r.mean("IR", "IY", "IB"),
		TotalPower: r.sum("WR", "WY", "WB"),
		Frequency:  r.Value("FRE"),
	}
}

func (r Reading) sum(names ...string) Value {
	total, n := 0.0, 0
	for _, name := range names {
		if v := r.Value(name); v.Valid {
			total += v.Float
			n++
		}
	}
	if n == 0 {
		return Absent
	}
	return Some(total)
}

func (r Reading) mean(names ...string) Value {
	total, n := 0.0, 0
	for _, name := range names {
		if v := r.Value(name); v.Valid {
			total += v.Float
			n++
		}
	}
	if n == 0 {
		return Absent
	}
	return Some(total / float64(n))
}
