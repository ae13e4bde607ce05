package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	errUnsupported       = errors.New("unsupported aggregation")
)

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

const timeColumn = "dateTime"

// SQLSource answers window queries against an archive table with one row per
// archive interval: a "dateTime" epoch-seconds column plus one column per
// metric.
type SQLSource struct {
	db    *sql.DB
	table string
}

// NewSQLSource validates the table name and returns a source over db.
func NewSQLSource(db *sql.DB, table string) (*SQLSource, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}
	return &SQLSource{db: db, table: table}, nil
}

func quote(ident string) string { return `"` + ident + `"` }

func (s *SQLSource) column(m weather.Metric) (string, error) {
	if !identPattern.MatchString(string(m)) {
		return "", fmt.Errorf("%w: %q", weather.ErrUnknownMetric, m)
	}
	return quote(string(m)), nil
}

// Window implements weather.Source.
func (s *SQLSource) Window(ctx context.Context, q weather.Query) ([]weather.Sample, error) {
	if err := q.Window.Validate(); err != nil {
		return nil, err
	}
	col, err := s.column(q.Metric)
	if err != nil {
		return nil, err
	}
	slots := q.Slots()

	switch q.Agg {
	case weather.AggLast, weather.AggMaxTime, weather.AggMinTime:
		if len(slots) == 1 {
			sample, err := s.extreme(ctx, col, q.Agg, slots[0])
			if err != nil {
				return nil, err
			}
			return []weather.Sample{sample}, nil
		}
		return s.raw(ctx, col, q, slots)
	case weather.AggAvg, weather.AggSum, weather.AggMax, weather.AggMin, weather.AggVecDir:
		if !uniform(slots, q.Window.Step) {
			return s.raw(ctx, col, q, slots)
		}
		return s.bucketed(ctx, col, q, slots)
	}
	return nil, fmt.Errorf("%w: %s", errUnsupported, q.Agg)
}

// uniform reports whether every slot spans exactly step, which is false for
// calendar days crossing a DST change.
func uniform(slots []weather.Slot, step time.Duration) bool {
	for _, sl := range slots {
		if sl.End.Sub(sl.Start) != step {
			return false
		}
	}
	return step%time.Second == 0
}

func sqlAgg(agg weather.Aggregation) string {
	switch agg {
	case weather.AggSum:
		return "SUM"
	case weather.AggMax:
		return "MAX"
	case weather.AggMin:
		return "MIN"
	}
	return "AVG"
}

// bucketed issues a single GROUP BY over the whole window, numbering rows by
// the slot they fall into.
func (s *SQLSource) bucketed(ctx context.Context, col string, q weather.Query, slots []weather.Slot) ([]weather.Sample, error) {
	start := slots[0].Start.Unix()
	end := slots[len(slots)-1].End.Unix()
	step := int64(q.Window.Step / time.Second)
	ts := quote(timeColumn)

	bucket := fmt.Sprintf("CAST(FLOOR((%s - $1 - 1) / $2) AS BIGINT)", ts)
	var query string
	if q.Agg == weather.AggVecDir {
		speed := quote(string(weather.WindSpeed))
		query = fmt.Sprintf(
			"SELECT %s AS slot, SUM(%s * COS(RADIANS(90 - %s))), SUM(%s * SIN(RADIANS(90 - %s))) FROM %s WHERE %s > $1 AND %s <= $3 AND %s IS NOT NULL AND %s IS NOT NULL GROUP BY slot",
			bucket, speed, col, speed, col, quote(s.table), ts, ts, col, speed)
	} else {
		query = fmt.Sprintf(
			"SELECT %s AS slot, %s(%s) FROM %s WHERE %s > $1 AND %s <= $3 AND %s IS NOT NULL GROUP BY slot",
			bucket, sqlAgg(q.Agg), col, quote(s.table), ts, ts, col)
	}

	rows, err := s.db.QueryContext(ctx, query, start, step, end)
	if err != nil {
		return nil, fmt.Errorf("window %s %s: %w", q.Metric, q.Agg, err)
	}
	defer rows.Close()

	out := emptySamples(slots)
	for rows.Next() {
		var (
			slot int64
			v    sql.NullFloat64
			y    sql.NullFloat64
		)
		dest := []any{&slot, &v}
		if q.Agg == weather.AggVecDir {
			dest = append(dest, &y)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Metric, err)
		}
		if slot < 0 || slot >= int64(len(out)) || !v.Valid {
			continue
		}
		if q.Agg == weather.AggVecDir {
			if !y.Valid || (v.Float64 == 0 && y.Float64 == 0) {
				continue
			}
			out[slot].Value = weather.VectorDirection(v.Float64, y.Float64)
		} else {
			out[slot].Value = v.Float64
		}
		out[slot].Valid = true
	}
	return out, rows.Err()
}

// extreme looks up a single row for last/max-time/min-time over one slot.
func (s *SQLSource) extreme(ctx context.Context, col string, agg weather.Aggregation, slot weather.Slot) (weather.Sample, error) {
	ts := quote(timeColumn)
	order := fmt.Sprintf("%s DESC", ts)
	switch agg {
	case weather.AggMaxTime:
		order = fmt.Sprintf("%s DESC, %s ASC", col, ts)
	case weather.AggMinTime:
		order = fmt.Sprintf("%s ASC, %s ASC", col, ts)
	}
	query := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s > $1 AND %s <= $2 AND %s IS NOT NULL ORDER BY %s LIMIT 1",
		ts, col, quote(s.table), ts, ts, col, order)

	var (
		at int64
		v  float64
	)
	err := s.db.QueryRowContext(ctx, query, slot.Start.Unix(), slot.End.Unix()).Scan(&at, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Sample{Timestamp: slot.End.Unix()}, nil
	}
	if err != nil {
		return weather.Sample{}, fmt.Errorf("%s lookup: %w", agg, err)
	}
	if agg == weather.AggLast {
		at = slot.End.Unix()
	}
	return weather.Sample{Timestamp: at, Value: v, Valid: true}, nil
}

// raw reads the rows of the window and reduces them in memory. It covers
// aggregations without a portable SQL form and slots of unequal length.
func (s *SQLSource) raw(ctx context.Context, col string, q weather.Query, slots []weather.Slot) ([]weather.Sample, error) {
	ts := quote(timeColumn)
	speed := quote(string(weather.WindSpeed))
	weighted := q.Agg == weather.AggVecDir

	cols := fmt.Sprintf("%s, %s", ts, col)
	if weighted {
		cols += ", " + speed
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s > $1 AND %s <= $2 AND %s IS NOT NULL ORDER BY %s",
		cols, quote(s.table), ts, ts, col, ts)

	rows, err := s.db.QueryContext(ctx, query, slots[0].Start.Unix(), slots[len(slots)-1].End.Unix())
	if err != nil {
		return nil, fmt.Errorf("window %s %s: %w", q.Metric, q.Agg, err)
	}
	defer rows.Close()

	buckets := make([][]weather.Point, len(slots))
	i := 0
	for rows.Next() {
		var (
			p weather.Point
			w sql.NullFloat64
		)
		dest := []any{&p.Timestamp, &p.Value}
		if weighted {
			dest = append(dest, &w)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Metric, err)
		}
		p.Weight = 1
		if weighted {
			if !w.Valid {
				continue
			}
			p.Weight = w.Float64
		}
		for i < len(slots) && !slots[i].Contains(p.Timestamp) {
			i++
		}
		if i == len(slots) {
			break
		}
		buckets[i] = append(buckets[i], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]weather.Sample, len(slots))
	for j, sl := range slots {
		out[j] = weather.Aggregate(q.Agg, sl.End.Unix(), buckets[j])
	}
	return out, nil
}

// MonthlyAverages implements weather.MonthlySource. Each calendar month is
// aggregated per year in loc, then averaged over all years in the archive.
func (s *SQLSource) MonthlyAverages(ctx context.Context, metric weather.Metric, agg weather.Aggregation, loc *time.Location) ([]weather.Sample, error) {
	col, err := s.column(metric)
	if err != nil {
		return nil, err
	}
	if agg != weather.AggSum && agg != weather.AggAvg {
		return nil, fmt.Errorf("%w: monthly %s", errUnsupported, agg)
	}

	stamp := fmt.Sprintf("(to_timestamp(%s) AT TIME ZONE $1)", quote(timeColumn))
	query := fmt.Sprintf(
		"SELECT m, AVG(v) FROM (SELECT CAST(EXTRACT(year FROM %s) AS INTEGER) AS y, CAST(EXTRACT(month FROM %s) AS INTEGER) AS m, %s(%s) AS v FROM %s WHERE %s IS NOT NULL GROUP BY y, m) AS monthly GROUP BY m ORDER BY m",
		stamp, stamp, sqlAgg(agg), col, quote(s.table), col)

	rows, err := s.db.QueryContext(ctx, query, zoneName(loc))
	if err != nil {
		return nil, fmt.Errorf("monthly %s: %w", metric, err)
	}
	defer rows.Close()

	out := make([]weather.Sample, 12)
	for rows.Next() {
		var (
			m int
			v sql.NullFloat64
		)
		if err := rows.Scan(&m, &v); err != nil {
			return nil, fmt.Errorf("scan monthly %s: %w", metric, err)
		}
		if m < 1 || m > 12 || !v.Valid {
			continue
		}
		out[m-1] = weather.Sample{Value: v.Float64, Valid: true}
	}
	return out, rows.Err()
}

// zoneName is the IANA name handed to AT TIME ZONE. The process-local zone
// has no portable name and is treated as UTC.
func zoneName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" || loc.String() == "" {
		return "UTC"
	}
	return loc.String()
}

func emptySamples(slots []weather.Slot) []weather.Sample {
	out := make([]weather.Sample, len(slots))
	for i, sl := range slots {
		out[i].Timestamp = sl.End.Unix()
	}
	return out
}
