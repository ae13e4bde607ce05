package clientraw

import (
	"errors"
	"fmt"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

// Kind identifies one of the record families.
type Kind string

const (
	KindRealtime Kind = "realtime"
	KindHourly   Kind = "hourly"
	KindDaily    Kind = "daily"
)

// Kinds lists every record family.
var Kinds = []Kind{KindRealtime, KindHourly, KindDaily}

// ParseKind validates a record kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// FileName is the conventional output file name of the record kind.
func (k Kind) FileName() string {
	switch k {
	case KindHourly:
		return "clientrawhour.txt"
	case KindDaily:
		return "clientrawdaily.txt"
	default:
		return "clientraw.txt"
	}
}

var (
	ErrUnknownKind  = errors.New("unknown record kind")
	ErrInvalidPlan  = errors.New("invalid field plan")
	ErrInvalidShape = errors.New("invalid record shape")
)

// Field is one entry of a field plan. Width is the number of consecutive
// positions the field occupies; Render must return exactly that many texts.
type Field struct {
	Name     string
	Width    int
	Sentinel string
	Render   func(b *Build) []string
}

// Plan is the ordered, authoritative layout of one record kind. The trailer
// occupies the final position and is not part of Fields.
type Plan struct {
	Kind    Kind
	Fields  []Field
	Trailer string

	// Queries lists the window queries the fields read, so they can be fetched
	// up front. May be nil.
	Queries func(b *Build) []weather.Query
}

// Width is the total number of positions including the trailer.
func (p Plan) Width() int {
	n := 1
	for _, f := range p.Fields {
		n += f.Width
	}
	return n
}

// Layout returns the first position of every field by name. Position 0 is
// the first field; the trailer sits at Width()-1.
func (p Plan) Layout() map[string]int {
	layout := make(map[string]int, len(p.Fields))
	pos := 0
	for _, f := range p.Fields {
		layout[f.Name] = pos
		pos += f.Width
	}
	return layout
}

// Validate checks that the plan is contiguous and unambiguous.
func (p Plan) Validate() error {
	if len(p.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidPlan, p.Kind)
	}
	if !trailerPattern.MatchString(p.Trailer) {
		return fmt.Errorf("%w: %s trailer %q", ErrInvalidPlan, p.Kind, p.Trailer)
	}
	seen := make(map[string]struct{}, len(p.Fields))
	for i, f := range p.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: %s field %d has no name", ErrInvalidPlan, p.Kind, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s duplicate field %q", ErrInvalidPlan, p.Kind, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Width <= 0 {
			return fmt.Errorf("%w: %s field %q width %d", ErrInvalidPlan, p.Kind, f.Name, f.Width)
		}
		if f.Render == nil {
			return fmt.Errorf("%w: %s field %q has no renderer", ErrInvalidPlan, p.Kind, f.Name)
		}
	}
	return nil
}

// Trailer formats the closing token for a tag.
func Trailer(tag string) string {
	return "!!" + tag + "!!"
}

// PlanFor returns the field plan of a record kind.
func PlanFor(kind Kind, opts Options) (Plan, error) {
	switch kind {
	case KindRealtime:
		return RealtimePlan(opts), nil
	case KindHourly:
		return HourlyPlan(opts), nil
	case KindDaily:
		return DailyPlan(opts), nil
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// single wraps a one-position renderer.
func single(name string, sentinel string, render func(b *Build) string) Field {
	return Field{
		Name:     name,
		Width:    1,
		Sentinel: sentinel,
		Render:   func(b *Build) []string { return []string{render(b)} },
	}
}

// constant is a position the station cannot provide.
func constant(name, text string) Field {
	return single(name, text, func(*Build) string { return text })
}

// constants emits the same text at n consecutive positions.
func constants(name, text string, n int) Field {
	return Field{
		Name:     name,
		Width:    n,
		Sentinel: text,
		Render: func(*Build) []string {
			out := make([]string, n)
			for i := range out {
				out[i] = text
			}
			return out
		},
	}
}

// array renders a window query as a run of slots.
func array(name string, w window, n Numeric, order Order) Field {
	return Field{
		Name:     name,
		Width:    w.spec.Count,
		Sentinel: SentinelSlot,
		Render: func(b *Build) []string {
			samples, reason := b.Series(w.query(b))
			b.countSlots(samples, w.spec.Count, reason)
			return BuildArray(samples, w.spec.Count, n, order)
		},
	}
}

// window is a query template anchored to the build time.
type window struct {
	metric weather.Metric
	agg    weather.Aggregation
	spec   weather.WindowSpec
}

func (w window) query(b *Build) weather.Query {
	return weather.Query{Metric: w.metric, Agg: w.agg, Window: w.spec, End: b.Now}
}

// queriesOf expands window templates for prefetching.
func queriesOf(windows ...window) func(b *Build) []weather.Query {
	return func(b *Build) []weather.Query {
		qs := make([]weather.Query, len(windows))
		for i, w := range windows {
			qs[i] = w.query(b)
		}
		return qs
	}
}
