package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/store"
	"github.com/i474232898/weather-clientraw/internal/weather"
)

var validate = validator.New()

// Builder renders records on demand.
type Builder interface {
	Build(ctx context.Context, kind clientraw.Kind, now time.Time) (clientraw.Record, error)
}

// PlanSource exposes the field plan of a record kind.
type PlanSource interface {
	Plan(kind clientraw.Kind) (clientraw.Plan, bool)
}

// LatestSource reports the newest stored observation.
type LatestSource interface {
	Latest() (weather.Observation, error)
}

// Routes lists the handlers to mount. Nil members are skipped.
type Routes struct {
	IngestPath string
	Ingester   *Ingester
	Builder    Builder
	Plans      PlanSource
	Latest     LatestSource
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, r Routes) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if r.Ingester != nil {
		path := r.IngestPath
		if path == "" {
			path = "/clientraw"
		}
		app.All(path, r.Ingester.Handle)
	}

	v1 := app.Group("/api/v1")

	if r.Builder != nil {
		v1.Get("/records/:kind", func(c *fiber.Ctx) error {
			kind, err := clientraw.ParseKind(c.Params("kind"))
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}

			rec, err := r.Builder.Build(c.UserContext(), kind, time.Now())
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to build record")
			}
			return c.SendString(rec.String())
		})
	}

	if r.Plans != nil {
		v1.Get("/records/:kind/layout", func(c *fiber.Ctx) error {
			kind, err := clientraw.ParseKind(c.Params("kind"))
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			plan, ok := r.Plans.Plan(kind)
			if !ok {
				return fiber.NewError(fiber.StatusNotFound, "no plan for record kind")
			}
			return c.JSON(fiber.Map{
				"kind":    kind,
				"width":   plan.Width(),
				"trailer": plan.Width() - 1,
				"fields":  plan.Layout(),
			})
		})
	}

	if r.Latest != nil {
		v1.Get("/observations/latest", func(c *fiber.Ctx) error {
			obs, err := r.Latest.Latest()
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "no observations received yet")
				}
				return fiber.NewError(fiber.StatusInternalServerError, "failed to read observations")
			}
			return c.JSON(obs)
		})
	}
}
