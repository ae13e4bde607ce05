package httpapi

import (
	"net/url"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-clientraw/internal/clientraw"
	"github.com/i474232898/weather-clientraw/internal/fsutil"
	"github.com/i474232898/weather-clientraw/internal/logging"
	"github.com/i474232898/weather-clientraw/internal/metrics"
)

// Ingester accepts records posted by remote stations and persists them.
type Ingester struct {
	field string
	dest  string
	perm  os.FileMode
	locks *fsutil.PathLocks
}

// NewIngester stores records posted under field at dest. Ingesters sharing
// locks never interleave writes to the same path.
func NewIngester(field, dest string, locks *fsutil.PathLocks) *Ingester {
	if field == "" {
		field = "clientraw"
	}
	if locks == nil {
		locks = &fsutil.PathLocks{}
	}
	return &Ingester{field: field, dest: dest, perm: 0o644, locks: locks}
}

// ingestRequest is the decoded body of a POST.
type ingestRequest struct {
	Record string `validate:"required"`
}

// Handle implements the ingest state machine: the method is checked before
// the body is read, the record shape before anything is written.
func (in *Ingester) Handle(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return in.reply(c, fiber.StatusMethodNotAllowed, "method")
	}

	req, err := in.decode(c.Body())
	if err != nil {
		logging.Debug().Err(err).Str("ip", c.IP()).Msg("ingest rejected")
		return in.reply(c, fiber.StatusBadRequest, "invalid")
	}

	rec, err := clientraw.ParseRecord(req.Record)
	if err != nil {
		logging.Debug().Err(err).Str("ip", c.IP()).Msg("ingest rejected")
		return in.reply(c, fiber.StatusBadRequest, "invalid")
	}

	unlock := in.locks.Lock(in.dest)
	err = fsutil.WriteAtomic(in.dest, []byte(req.Record), in.perm)
	unlock()
	if err != nil {
		logging.Error().Err(err).Str("dest", in.dest).Msg("ingest write failed")
		return in.reply(c, fiber.StatusInsufficientStorage, "storage")
	}

	logging.Debug().Int("positions", rec.Width()).Str("trailer", rec.Trailer).Msg("record ingested")
	return in.reply(c, fiber.StatusOK, "ok")
}

func (in *Ingester) decode(body []byte) (ingestRequest, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return ingestRequest{}, err
	}
	req := ingestRequest{Record: values.Get(in.field)}
	if err := validate.Struct(req); err != nil {
		return ingestRequest{}, err
	}
	return req, nil
}

func (in *Ingester) reply(c *fiber.Ctx, status int, word string) error {
	metrics.RecordIngest(status)
	return c.Status(status).SendString(word)
}
