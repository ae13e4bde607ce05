// Package supervisor runs the long-lived services under a suture tree so a
// crashing scheduler, trigger or server is restarted with backoff.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/i474232898/weather-clientraw/internal/logging"
)

// TreeConfig holds restart tuning. Zero values take defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// Tree is the root supervisor with one child layer for record production
// and one for inbound traffic.
type Tree struct {
	root      *suture.Supervisor
	producers *suture.Supervisor
	inbound   *suture.Supervisor
}

// NewTree creates the supervisor hierarchy.
func NewTree(name string, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	rootSpec := suture.Spec{
		EventHook:        logEvent,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New(name, rootSpec)
	producers := suture.New("producers", childSpec)
	inbound := suture.New("inbound", childSpec)
	root.Add(producers)
	root.Add(inbound)

	return &Tree{root: root, producers: producers, inbound: inbound}
}

// AddProducer adds a service that builds or publishes records, such as the
// scheduler.
func (t *Tree) AddProducer(svc suture.Service) suture.ServiceToken {
	return t.producers.Add(svc)
}

// AddInbound adds a service that accepts external traffic, such as the HTTP
// server or the loop packet trigger.
func (t *Tree) AddInbound(svc suture.Service) suture.ServiceToken {
	return t.inbound.Add(svc)
}

// Serve blocks until ctx is cancelled and every service has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree and returns a channel carrying its result.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func logEvent(e suture.Event) {
	ev := logging.Warn()
	if e.Type() == suture.EventTypeBackoff || e.Type() == suture.EventTypeResume {
		ev = logging.Info()
	}
	ev.Fields(e.Map()).Msg(e.String())
}
