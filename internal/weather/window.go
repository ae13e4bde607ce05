package weather

import (
	"fmt"
	"time"
)

// Aggregation selects how samples inside a slot are reduced.
type Aggregation string

const (
	AggLast    Aggregation = "last"
	AggAvg     Aggregation = "avg"
	AggSum     Aggregation = "sum"
	AggMax     Aggregation = "max"
	AggMin     Aggregation = "min"
	AggVecDir  Aggregation = "vecdir"
	AggMaxTime Aggregation = "maxtime"
	AggMinTime Aggregation = "mintime"
)

// Align controls where the newest slot ends.
type Align int

const (
	// AlignNow ends the newest slot exactly at the query end.
	AlignNow Align = iota
	// AlignBoundary places slot edges on multiples of Step counted from local
	// midnight; the newest slot is the partial one containing the query end.
	AlignBoundary
)

// WindowSpec declares a run of Count consecutive slots of length Step.
type WindowSpec struct {
	Count int
	Step  time.Duration
	Align Align
}

// Validate enforces Count > 0 and Step > 0.
func (w WindowSpec) Validate() error {
	if w.Count <= 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidWindow, w.Count)
	}
	if w.Step <= 0 {
		return fmt.Errorf("%w: step %s", ErrInvalidWindow, w.Step)
	}
	return nil
}

// Slot is the half-open interval (Start, End] covered by one array index.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls in (Start, End].
func (s Slot) Contains(ts int64) bool {
	return ts > s.Start.Unix() && ts <= s.End.Unix()
}

// Slots maps every index of the window to its time interval, oldest first.
// Whole-day steps advance by calendar days in end's location so that slots
// stay on local midnight across DST changes.
func (w WindowSpec) Slots(end time.Time) []Slot {
	if w.Validate() != nil {
		return nil
	}
	last := w.lastEdge(end)
	slots := make([]Slot, w.Count)
	for i := w.Count - 1; i >= 0; i-- {
		start := w.back(last)
		slots[i] = Slot{Start: start, End: last}
		last = start
	}
	return slots
}

func (w WindowSpec) days() int {
	if w.Step%(24*time.Hour) != 0 {
		return 0
	}
	return int(w.Step / (24 * time.Hour))
}

func (w WindowSpec) back(t time.Time) time.Time {
	if d := w.days(); d > 0 {
		return t.AddDate(0, 0, -d)
	}
	return t.Add(-w.Step)
}

func (w WindowSpec) lastEdge(end time.Time) time.Time {
	if w.Align == AlignNow {
		return end
	}
	midnight := LocalMidnight(end)
	if d := w.days(); d > 0 {
		if midnight.Equal(end) {
			return end
		}
		return midnight.AddDate(0, 0, 1)
	}
	if (24*time.Hour)%w.Step != 0 {
		aligned := end.Truncate(w.Step)
		if aligned.Equal(end) {
			return end
		}
		return aligned.Add(w.Step)
	}
	offset := end.Sub(midnight)
	n := offset / w.Step
	if offset%w.Step == 0 {
		return midnight.Add(n * w.Step)
	}
	return midnight.Add((n + 1) * w.Step)
}

// LocalMidnight returns the start of t's calendar day in t's location.
func LocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
