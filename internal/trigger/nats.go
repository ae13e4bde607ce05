package trigger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/metrics"
	"github.com/i474232898/weather-clientraw/internal/snapshot"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

// UnitsMetricWX is the only unit system accepted in loop packets: degrees C,
// m/s, hPa and mm.
const UnitsMetricWX = 17

var (
	ErrInvalidPacket = errors.New("invalid loop packet")
	ErrWrongUnits    = errors.New("unsupported unit system")
)

// Saver stores observations.
type Saver interface {
	Save(obs weather.Observation)
}

// Publisher builds and writes records.
type Publisher interface {
	Publish(ctx context.Context, kind clientraw.Kind, now time.Time) error
}

// Subscriber consumes loop packets from NATS, stores them and publishes a
// realtime record for each one.
type Subscriber struct {
	url       string
	subject   string
	store     Saver
	publisher Publisher
	timeout   time.Duration
}

// NewSubscriber creates a Subscriber. store is nil when observations are
// archived elsewhere; publisher may be nil to only store.
func NewSubscriber(url, subject string, store Saver, publisher Publisher) *Subscriber {
	return &Subscriber{
		url:       url,
		subject:   subject,
		store:     store,
		publisher: publisher,
		timeout:   10 * time.Second,
	}
}

// Serve connects, subscribes and handles packets until ctx is cancelled.
func (s *Subscriber) Serve(ctx context.Context) error {
	nc, err := nats.Connect(s.url,
		nats.Name("clientraw"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		hctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.HandlePacket(hctx, msg.Data); err != nil {
			logging.Warn().Err(err).Str("subject", msg.Subject).Msg("loop packet dropped")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	logging.Info().Str("subject", s.subject).Msg("listening for loop packets")

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		logging.Warn().Err(err).Msg("drain subscription")
	}
	return ctx.Err()
}

func (s *Subscriber) String() string { return "nats-trigger" }

// HandlePacket decodes one loop packet, stores it and triggers a realtime
// publish. A throttled publish is not an error.
func (s *Subscriber) HandlePacket(ctx context.Context, data []byte) error {
	obs, err := DecodePacket(data)
	if err != nil {
		return err
	}
	if s.store != nil {
		s.store.Save(obs)
	}
	metrics.RecordObservation()

	if s.publisher == nil {
		return nil
	}
	err = s.publisher.Publish(ctx, clientraw.KindRealtime, time.Unix(obs.Timestamp, 0))
	if err != nil && !errors.Is(err, snapshot.ErrThrottled) {
		return fmt.Errorf("publish realtime: %w", err)
	}
	return nil
}

// DecodePacket turns a flat JSON loop packet into an observation. Every
// numeric member other than dateTime and usUnits becomes a metric value;
// nulls, strings and non-finite numbers are skipped.
func DecodePacket(data []byte) (weather.Observation, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return weather.Observation{}, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}

	ts, ok := raw["dateTime"].(float64)
	if !ok || ts <= 0 {
		return weather.Observation{}, fmt.Errorf("%w: missing dateTime", ErrInvalidPacket)
	}
	if units, ok := raw["usUnits"].(float64); ok && int(units) != UnitsMetricWX {
		return weather.Observation{}, fmt.Errorf("%w: %d", ErrWrongUnits, int(units))
	}

	obs := weather.Observation{
		Timestamp: int64(ts),
		Values:    make(map[weather.Metric]float64, len(raw)),
	}
	for k, v := range raw {
		if k == "dateTime" || k == "usUnits" || k == "interval" {
			continue
		}
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		obs.Values[weather.Metric(k)] = f
	}
	return obs, nil
}
