package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/metrics"
	"github.com/i474232898/weather-clientraw/internal/sink"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

var (
	// ErrThrottled is returned by Publish when a realtime record was written
	// less than the minimum interval ago.
	ErrThrottled = errors.New("publish throttled")
	// ErrNoSinks is returned by Publish when a kind has nowhere to go.
	ErrNoSinks = errors.New("no sinks configured")
)

// ConditionsSource supplies externally sourced conditions for realtime records.
type ConditionsSource interface {
	Current() clientraw.Conditions
}

// Config wires a Service.
type Config struct {
	Station    weather.Station
	Options    clientraw.Options
	Source     weather.Source
	Conditions ConditionsSource
	Sinks      map[clientraw.Kind][]sink.Sink
	// MinInterval is the shortest gap between two realtime publishes.
	MinInterval time.Duration
}

// Service builds records and hands them to the sinks of their kind.
type Service struct {
	station    weather.Station
	opts       clientraw.Options
	source     weather.Source
	conditions ConditionsSource
	sinks      map[clientraw.Kind][]sink.Sink
	plans      map[clientraw.Kind]clientraw.Plan

	group   singleflight.Group
	limiter *rate.Limiter
	clock   func() time.Time
}

// NewService resolves and validates the plan of every record kind.
func NewService(cfg Config) (*Service, error) {
	s := &Service{
		station:    cfg.Station,
		opts:       cfg.Options,
		source:     cfg.Source,
		conditions: cfg.Conditions,
		sinks:      cfg.Sinks,
		plans:      make(map[clientraw.Kind]clientraw.Plan, len(clientraw.Kinds)),
		clock:      time.Now,
	}
	for _, kind := range clientraw.Kinds {
		p, err := clientraw.PlanFor(kind, cfg.Options)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s plan: %w", kind, err)
		}
		s.plans[kind] = p
	}
	if cfg.MinInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return s, nil
}

// Build assembles one record of the given kind as of now.
func (s *Service) Build(ctx context.Context, kind clientraw.Kind, now time.Time) (clientraw.Record, error) {
	p, ok := s.plans[kind]
	if !ok {
		return clientraw.Record{}, fmt.Errorf("%w: %q", clientraw.ErrUnknownKind, kind)
	}

	b := clientraw.NewBuild(ctx, kind, now, s.station, s.opts, s.source)
	if s.conditions != nil && kind == clientraw.KindRealtime {
		b.Conditions = s.conditions.Current()
	}
	rec := clientraw.Assemble(b, p)

	fallbacks := make(map[string]int)
	for reason, n := range b.Fallbacks() {
		fallbacks[reason.String()] = n
	}
	metrics.RecordFallbacks(string(kind), fallbacks)

	logging.Debug().
		Str("build", b.ID).
		Str("kind", string(kind)).
		Int("fallbacks", b.FallbackTotal()).
		Msg("record built")
	return rec, nil
}

// Publish builds a record as of now and writes it to every sink of its kind.
// The first sink failure aborts the publish and is returned. Concurrent
// publishes of the same kind and second share one build. The realtime
// minimum interval is measured on the wall clock, whatever instant now is.
func (s *Service) Publish(ctx context.Context, kind clientraw.Kind, now time.Time) error {
	if kind == clientraw.KindRealtime && s.limiter != nil && !s.limiter.AllowN(s.clock(), 1) {
		metrics.RecordBuildSkipped(string(kind))
		return ErrThrottled
	}

	key := string(kind) + "@" + strconv.FormatInt(now.Unix(), 10)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		err := s.publish(ctx, kind, now)
		metrics.RecordBuild(string(kind), time.Since(start), err)
		return nil, err
	})
	return err
}

func (s *Service) publish(ctx context.Context, kind clientraw.Kind, now time.Time) error {
	sinks := s.sinks[kind]
	if len(sinks) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSinks, kind)
	}

	rec, err := s.Build(ctx, kind, now)
	if err != nil {
		return err
	}

	data := []byte(rec.String())
	for _, sk := range sinks {
		if err := sk.Write(ctx, data); err != nil {
			metrics.RecordSinkFailure(sk.Name())
			return fmt.Errorf("publish %s to %s: %w", kind, sk.Name(), err)
		}
	}

	logging.Info().
		Str("kind", string(kind)).
		Int("fields", rec.Width()).
		Int("sinks", len(sinks)).
		Msg("record published")
	return nil
}

// Kinds returns the record kinds that have at least one sink.
func (s *Service) Kinds() []clientraw.Kind {
	var out []clientraw.Kind
	for _, kind := range clientraw.Kinds {
		if len(s.sinks[kind]) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// Plan returns the resolved field plan of kind.
func (s *Service) Plan(kind clientraw.Kind) (clientraw.Plan, bool) {
	p, ok := s.plans[kind]
	return p, ok
}
