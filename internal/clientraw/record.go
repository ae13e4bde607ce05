package clientraw

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

// Header is the fixed value of position 0 in every record.
const Header = "12345"

var trailerPattern = regexp.MustCompile(`^!!\S+!!$`)

// Record is an assembled record: the rendered fields followed by the trailer.
type Record struct {
	Kind    Kind
	Fields  []string
	Trailer string
}

// Width is the number of positions including the trailer.
func (r Record) Width() int { return len(r.Fields) + 1 }

// String joins all positions with single spaces.
func (r Record) String() string {
	var sb strings.Builder
	for _, f := range r.Fields {
		sb.WriteString(f)
		sb.WriteByte(' ')
	}
	sb.WriteString(r.Trailer)
	return sb.String()
}

// ParseRecord splits raw record text into positions and checks its shape.
func ParseRecord(text string) (Record, error) {
	fields := strings.Fields(text)
	if err := validateShape(fields); err != nil {
		return Record{}, err
	}
	n := len(fields)
	return Record{Fields: fields[:n-1], Trailer: fields[n-1]}, nil
}

// validateShape requires the header at position 0 and a trailer at the end.
func validateShape(fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: %d fields", ErrInvalidShape, len(fields))
	}
	if fields[0] != Header {
		return fmt.Errorf("%w: leading field %q", ErrInvalidShape, fields[0])
	}
	if last := fields[len(fields)-1]; !trailerPattern.MatchString(last) {
		return fmt.Errorf("%w: trailer %q", ErrInvalidShape, last)
	}
	return nil
}

// Assemble renders every field of the plan in position order. A field that
// panics or returns the wrong number of texts is replaced by its sentinel so
// that later positions never shift.
func Assemble(b *Build, p Plan) Record {
	if p.Queries != nil {
		b.Prefetch(p.Queries(b))
	}

	out := make([]string, 0, p.Width()-1)
	for _, f := range p.Fields {
		out = append(out, renderField(b, f)...)
	}
	return Record{Kind: p.Kind, Fields: out, Trailer: p.Trailer}
}

func renderField(b *Build, f Field) (texts []string) {
	sentinel := f.Sentinel
	if sentinel == "" {
		sentinel = SentinelSlot
	}

	defer func() {
		if rec := recover(); rec != nil {
			b.logger().Warn().
				Str("field", f.Name).
				Interface("panic", rec).
				Msg("field renderer panicked")
			b.countFallback(weather.ReasonComputation)
			texts = repeat(sentinel, f.Width)
		}
	}()

	texts = f.Render(b)
	if len(texts) != f.Width {
		b.logger().Warn().
			Str("field", f.Name).
			Int("want", f.Width).
			Int("got", len(texts)).
			Msg("field renderer returned wrong width")
		fixed := repeat(sentinel, f.Width)
		copy(fixed, texts)
		texts = fixed
	}
	for i, t := range texts {
		if t == "" || strings.ContainsAny(t, " \t\r\n") {
			texts[i] = sentinel
		}
	}
	return texts
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
