package weather

import "math"

// AbsentReason explains why a query produced no usable value.
type AbsentReason int

const (
	ReasonNone AbsentReason = iota
	ReasonAbsent
	ReasonTypeMismatch
	ReasonOutOfRange
	ReasonComputation
	ReasonSourceError
)

func (r AbsentReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonAbsent:
		return "absent"
	case ReasonTypeMismatch:
		return "type_mismatch"
	case ReasonOutOfRange:
		return "out_of_range"
	case ReasonComputation:
		return "computation"
	case ReasonSourceError:
		return "source_error"
	default:
		return "unknown"
	}
}

// Sample is one slot of a window query. Timestamp is the slot end, or the
// time of the extreme for AggMaxTime/AggMinTime queries.
type Sample struct {
	Timestamp int64
	Value     float64
	Valid     bool
}

// Result converts the sample into an explicit value-or-reason.
func (s Sample) Result() Result {
	if !s.Valid {
		return Absent(ReasonAbsent)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return Absent(ReasonTypeMismatch)
	}
	return Value(s.Value)
}

// Result is either a value or the reason there is none.
type Result struct {
	Value  float64
	Reason AbsentReason
}

// Value wraps a present value.
func Value(v float64) Result { return Result{Value: v} }

// Absent builds an empty result with the given reason.
func Absent(reason AbsentReason) Result { return Result{Reason: reason} }

// OK reports whether the result carries a value.
func (r Result) OK() bool { return r.Reason == ReasonNone }

// Map applies f to a present value.
func (r Result) Map(f func(float64) float64) Result {
	if !r.OK() {
		return r
	}
	v := f(r.Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Absent(ReasonComputation)
	}
	return Value(v)
}

// Sub returns r - o, absent if either side is.
func (r Result) Sub(o Result) Result {
	if !r.OK() {
		return r
	}
	if !o.OK() {
		return o
	}
	return Value(r.Value - o.Value)
}

// Or returns r when present, otherwise fallback.
func (r Result) Or(fallback Result) Result {
	if r.OK() {
		return r
	}
	return fallback
}
