package clientraw

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// DefaultRecordTag is the protocol tag written into every trailer.
const DefaultRecordTag = "C10.37S120"

// MonthAvgSource selects where monthly average rainfall comes from.
type MonthAvgSource string

const (
	// MonthAvgManual prefers configured values, then computed ones.
	MonthAvgManual MonthAvgSource = "manual"
	// MonthAvgComputed only uses averages derived from the archive.
	MonthAvgComputed MonthAvgSource = "computed"
	// MonthAvgAuto prefers computed values, then configured ones.
	MonthAvgAuto MonthAvgSource = "auto"
)

// Options tune the field plans.
type Options struct {
	RecordTag       string
	AvgSpeedPeriod  time.Duration
	GustPeriod      time.Duration
	TrendPeriod     time.Duration
	BaroTrendPeriod time.Duration
	// Grace is how far from the trend start a reference sample may lie.
	Grace time.Duration
	// Stale bounds how old a sample may be to count as current.
	Stale time.Duration

	MonthAvgSource     MonthAvgSource
	LegacyDuplicate    bool
	ManualRainAverages map[time.Month]float64

	// PrefetchLimit caps concurrent source queries during prefetch.
	PrefetchLimit int
}

// DefaultOptions returns the stock option set.
func DefaultOptions() Options {
	return Options{
		RecordTag:       DefaultRecordTag,
		AvgSpeedPeriod:  5 * time.Minute,
		GustPeriod:      5 * time.Minute,
		TrendPeriod:     time.Hour,
		BaroTrendPeriod: time.Hour,
		Grace:           200 * time.Second,
		Stale:           10 * time.Minute,
		MonthAvgSource:  MonthAvgManual,
		PrefetchLimit:   8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RecordTag == "" {
		o.RecordTag = d.RecordTag
	}
	if o.AvgSpeedPeriod <= 0 {
		o.AvgSpeedPeriod = d.AvgSpeedPeriod
	}
	if o.GustPeriod < 0 {
		o.GustPeriod = d.GustPeriod
	}
	if o.TrendPeriod <= 0 {
		o.TrendPeriod = d.TrendPeriod
	}
	if o.BaroTrendPeriod <= 0 {
		o.BaroTrendPeriod = d.BaroTrendPeriod
	}
	if o.Grace <= 0 {
		o.Grace = d.Grace
	}
	if o.Stale <= 0 {
		o.Stale = d.Stale
	}
	if o.MonthAvgSource == "" {
		o.MonthAvgSource = d.MonthAvgSource
	}
	if o.PrefetchLimit <= 0 {
		o.PrefetchLimit = d.PrefetchLimit
	}
	return o
}

// Conditions carries externally sourced current conditions.
type Conditions struct {
	Icon         weather.Result
	ForecastIcon weather.Result
	Text         string
}

// NoConditions is used when no conditions provider is configured.
var NoConditions = Conditions{
	Icon:         weather.Absent(weather.ReasonAbsent),
	ForecastIcon: weather.Absent(weather.ReasonAbsent),
}

type cachedSeries struct {
	samples []weather.Sample
	reason  weather.AbsentReason
}

// Build is the context of one record build. Query results are cached for the
// lifetime of the build and shared by every field that needs them.
type Build struct {
	ID         string
	Kind       Kind
	Now        time.Time
	Station    weather.Station
	Options    Options
	Conditions Conditions

	ctx    context.Context
	source weather.Source
	log    zerolog.Logger

	mu        sync.Mutex
	cache     map[weather.Query]cachedSeries
	monthly   map[weather.Metric]cachedSeries
	fallbacks map[weather.AbsentReason]int
}

// NewBuild prepares a build at now, expressed in the station time zone.
func NewBuild(ctx context.Context, kind Kind, now time.Time, station weather.Station, opts Options, src weather.Source) *Build {
	id := uuid.NewString()
	return &Build{
		ID:         id,
		Kind:       kind,
		Now:        now.In(station.Loc()),
		Station:    station,
		Options:    opts.withDefaults(),
		Conditions: NoConditions,
		ctx:        ctx,
		source:     src,
		log:        logging.With().Str("build", id).Str("kind", string(kind)).Logger(),
		cache:      make(map[weather.Query]cachedSeries),
		monthly:    make(map[weather.Metric]cachedSeries),
		fallbacks:  make(map[weather.AbsentReason]int),
	}
}

func (b *Build) logger() *zerolog.Logger { return &b.log }

// Prefetch runs the given queries concurrently and caches their results.
// Failures are cached too; they surface as absent values when fields read them.
func (b *Build) Prefetch(queries []weather.Query) {
	g, ctx := errgroup.WithContext(b.ctx)
	g.SetLimit(b.Options.PrefetchLimit)

	seen := make(map[weather.Query]struct{}, len(queries))
	for _, q := range queries {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		if b.cached(q) {
			continue
		}
		q := q
		g.Go(func() error {
			b.store(q, b.fetch(ctx, q))
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Build) cached(q weather.Query) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.cache[q]
	return ok
}

func (b *Build) store(q weather.Query, c cachedSeries) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache[q] = c
}

func (b *Build) fetch(ctx context.Context, q weather.Query) cachedSeries {
	if err := q.Window.Validate(); err != nil {
		return cachedSeries{reason: weather.ReasonOutOfRange}
	}
	if b.source == nil {
		return cachedSeries{reason: weather.ReasonAbsent}
	}
	samples, err := b.source.Window(ctx, q)
	if err != nil {
		b.log.Debug().Err(err).
			Str("metric", string(q.Metric)).
			Str("agg", string(q.Agg)).
			Msg("window query failed")
		return cachedSeries{reason: weather.ReasonSourceError}
	}
	return cachedSeries{samples: samples}
}

// Series returns the samples of q, querying the source on first use.
func (b *Build) Series(q weather.Query) ([]weather.Sample, weather.AbsentReason) {
	b.mu.Lock()
	c, ok := b.cache[q]
	b.mu.Unlock()
	if !ok {
		c = b.fetch(b.ctx, q)
		b.store(q, c)
	}
	return c.samples, c.reason
}

// Sample returns the newest slot of q.
func (b *Build) Sample(q weather.Query) (weather.Sample, weather.AbsentReason) {
	samples, reason := b.Series(q)
	if reason != weather.ReasonNone {
		return weather.Sample{}, reason
	}
	if len(samples) == 0 {
		return weather.Sample{}, weather.ReasonAbsent
	}
	return samples[len(samples)-1], weather.ReasonNone
}

// Value returns the newest slot of q as a result.
func (b *Build) Value(q weather.Query) weather.Result {
	s, reason := b.Sample(q)
	if reason != weather.ReasonNone {
		return weather.Absent(reason)
	}
	return s.Result()
}

// Between is a single-slot query over (start, end].
func (b *Build) Between(metric weather.Metric, agg weather.Aggregation, start, end time.Time) weather.Query {
	return weather.Query{
		Metric: metric,
		Agg:    agg,
		Window: weather.WindowSpec{Count: 1, Step: end.Sub(start)},
		End:    end,
	}
}

// Over is a single-slot query covering the span ending now.
func (b *Build) Over(metric weather.Metric, agg weather.Aggregation, span time.Duration) weather.Query {
	return b.Between(metric, agg, b.Now.Add(-span), b.Now)
}

// Since is a single-slot query from start until now.
func (b *Build) Since(metric weather.Metric, agg weather.Aggregation, start time.Time) weather.Query {
	return b.Between(metric, agg, start, b.Now)
}

// Today is a single-slot query from local midnight until now.
func (b *Build) Today(metric weather.Metric, agg weather.Aggregation) weather.Query {
	return b.Since(metric, agg, weather.LocalMidnight(b.Now))
}

// Current returns the latest value of metric no older than Options.Stale.
func (b *Build) Current(metric weather.Metric) weather.Result {
	return b.Value(b.Over(metric, weather.AggLast, b.Options.Stale))
}

// At returns the value of metric nearest before t, within Options.Grace.
func (b *Build) At(metric weather.Metric, t time.Time) weather.Result {
	return b.Value(b.Between(metric, weather.AggLast, t.Add(-b.Options.Grace), t))
}

// MonthlyAverages returns the long-term per-month aggregate of metric when
// the source supports it.
func (b *Build) MonthlyAverages(metric weather.Metric, agg weather.Aggregation) ([]weather.Sample, weather.AbsentReason) {
	b.mu.Lock()
	c, ok := b.monthly[metric]
	b.mu.Unlock()
	if ok {
		return c.samples, c.reason
	}

	ms, supported := b.source.(weather.MonthlySource)
	switch {
	case !supported:
		c = cachedSeries{reason: weather.ReasonAbsent}
	default:
		samples, err := ms.MonthlyAverages(b.ctx, metric, agg, b.Station.Loc())
		if err != nil {
			b.log.Debug().Err(err).Str("metric", string(metric)).Msg("monthly averages failed")
			c = cachedSeries{reason: weather.ReasonSourceError}
		} else {
			c = cachedSeries{samples: samples}
		}
	}

	b.mu.Lock()
	b.monthly[metric] = c
	b.mu.Unlock()
	return c.samples, c.reason
}

// Num renders r and records the reason when it falls back.
func (b *Build) Num(r weather.Result, n Numeric) string {
	if r.OK() && n.Convert != nil {
		r = r.Map(n.Convert)
	}
	if !r.OK() {
		b.countFallback(r.Reason)
	}
	n.Convert = nil
	return Resolve(r, n)
}

// NumMany renders several results combined into one value. Every unavailable
// input is counted, even when the fallback skips it.
func (b *Build) NumMany(results []weather.Result, combine func(vals []float64) float64, n Numeric) string {
	for _, r := range results {
		if !r.OK() {
			b.countFallback(r.Reason)
		}
	}
	return ResolveMany(results, combine, n)
}

func (b *Build) countFallback(reason weather.AbsentReason) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallbacks[reason]++
}

func (b *Build) countSlots(samples []weather.Sample, count int, reason weather.AbsentReason) {
	for i := 0; i < count; i++ {
		switch {
		case reason != weather.ReasonNone:
			b.countFallback(reason)
		case i >= len(samples):
			b.countFallback(weather.ReasonOutOfRange)
		default:
			if r := samples[i].Result(); !r.OK() {
				b.countFallback(r.Reason)
			}
		}
	}
}

// Fallbacks reports how many positions fell back, per reason.
func (b *Build) Fallbacks() map[weather.AbsentReason]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[weather.AbsentReason]int, len(b.fallbacks))
	for k, v := range b.fallbacks {
		out[k] = v
	}
	return out
}

// FallbackTotal sums Fallbacks.
func (b *Build) FallbackTotal() int {
	total := 0
	for _, n := range b.Fallbacks() {
		total += n
	}
	return total
}
