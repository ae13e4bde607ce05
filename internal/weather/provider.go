package weather

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidWindow = errors.New("invalid window")
	ErrUnknownMetric = errors.New("unknown metric")
)

// Query asks a Source for one aggregated value per window slot.
type Query struct {
	Metric Metric
	Agg    Aggregation
	Window WindowSpec
	// End anchors the window. Its location decides local day boundaries.
	End time.Time
}

// Source answers window queries over the station history. Implementations
// return exactly one sample per slot, oldest first; slots without data are
// returned with Valid set to false.
type Source interface {
	Window(ctx context.Context, q Query) ([]Sample, error)
}

// MonthlySource is implemented by sources that can report long-term
// per-calendar-month aggregates. Months are calendar months in loc. The
// result holds 12 samples, January first.
type MonthlySource interface {
	MonthlyAverages(ctx context.Context, metric Metric, agg Aggregation, loc *time.Location) ([]Sample, error)
}

// Slots returns the time mapping of the query's window.
func (q Query) Slots() []Slot {
	return q.Window.Slots(q.End)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, q Query) ([]Sample, error)

func (f SourceFunc) Window(ctx context.Context, q Query) ([]Sample, error) {
	return f(ctx, q)
}
