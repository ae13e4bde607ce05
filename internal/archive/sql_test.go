package archive

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

var testEnd = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*SQLSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src, err := NewSQLSource(db, "archive")
	require.NoError(t, err)
	return src, mock
}

func TestNewSQLSourceRejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLSource(db, "archive; drop table x")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestWindowBucketed(t *testing.T) {
	src, mock := newMock(t)
	start := testEnd.Add(-3 * time.Minute).Unix()

	mock.ExpectQuery(`SELECT CAST\(FLOOR\(\("dateTime" - \$1 - 1\) / \$2\) AS BIGINT\) AS slot, AVG\("outTemp"\) FROM "archive" WHERE .* GROUP BY slot`).
		WithArgs(start, int64(60), testEnd.Unix()).
		WillReturnRows(sqlmock.NewRows([]string{"slot", "avg"}).
			AddRow(int64(0), 1.5).
			AddRow(int64(2), 3.0).
			AddRow(int64(9), 99.0))

	got, err := src.Window(context.Background(), weather.Query{
		Metric: weather.OutTemp,
		Agg:    weather.AggAvg,
		Window: weather.WindowSpec{Count: 3, Step: time.Minute},
		End:    testEnd,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, weather.Sample{Timestamp: start + 60, Value: 1.5, Valid: true}, got[0])
	assert.False(t, got[1].Valid)
	assert.Equal(t, testEnd.Unix(), got[2].Timestamp)
	assert.Equal(t, 3.0, got[2].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowVectorDirection(t *testing.T) {
	src, mock := newMock(t)

	mock.ExpectQuery(`SUM\("windSpeed" \* COS\(RADIANS\(90 - "windDir"\)\)\)`).
		WillReturnRows(sqlmock.NewRows([]string{"slot", "x", "y"}).
			AddRow(int64(0), 0.0, 2.0).
			AddRow(int64(1), 0.0, 0.0))

	got, err := src.Window(context.Background(), weather.Query{
		Metric: weather.WindDir,
		Agg:    weather.AggVecDir,
		Window: weather.WindowSpec{Count: 2, Step: 6 * time.Minute},
		End:    testEnd,
	})
	require.NoError(t, err)
	require.True(t, got[0].Valid)
	assert.InDelta(t, 0, got[0].Value, 1e-9)
	assert.False(t, got[1].Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowMaxTime(t *testing.T) {
	src, mock := newMock(t)
	midnight := weather.LocalMidnight(testEnd)

	mock.ExpectQuery(`SELECT "dateTime", "outTemp" FROM "archive" WHERE .* ORDER BY "outTemp" DESC, "dateTime" ASC LIMIT 1`).
		WithArgs(midnight.Unix(), testEnd.Unix()).
		WillReturnRows(sqlmock.NewRows([]string{"dateTime", "outTemp"}).AddRow(int64(1715335200), 24.5))

	got, err := src.Window(context.Background(), weather.Query{
		Metric: weather.OutTemp,
		Agg:    weather.AggMaxTime,
		Window: weather.WindowSpec{Count: 1, Step: testEnd.Sub(midnight)},
		End:    testEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, []weather.Sample{{Timestamp: 1715335200, Value: 24.5, Valid: true}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowLastWithoutRows(t *testing.T) {
	src, mock := newMock(t)

	mock.ExpectQuery(`ORDER BY "dateTime" DESC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"dateTime", "barometer"}))

	got, err := src.Window(context.Background(), weather.Query{
		Metric: weather.Barometer,
		Agg:    weather.AggLast,
		Window: weather.WindowSpec{Count: 1, Step: 10 * time.Minute},
		End:    testEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, []weather.Sample{{Timestamp: testEnd.Unix()}}, got)
}

func TestWindowRawForMultiSlotLast(t *testing.T) {
	src, mock := newMock(t)
	start := testEnd.Add(-2 * time.Minute)

	mock.ExpectQuery(`SELECT "dateTime", "outTemp" FROM "archive" WHERE .* ORDER BY "dateTime"$`).
		WithArgs(start.Unix(), testEnd.Unix()).
		WillReturnRows(sqlmock.NewRows([]string{"dateTime", "outTemp"}).
			AddRow(start.Unix()+10, 1.0).
			AddRow(start.Unix()+50, 2.0).
			AddRow(testEnd.Unix(), 3.0))

	got, err := src.Window(context.Background(), weather.Query{
		Metric: weather.OutTemp,
		Agg:    weather.AggLast,
		Window: weather.WindowSpec{Count: 2, Step: time.Minute},
		End:    testEnd,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 3.0, got[1].Value)
}

func TestWindowRejectsBadMetric(t *testing.T) {
	src, _ := newMock(t)
	_, err := src.Window(context.Background(), weather.Query{
		Metric: weather.Metric(`outTemp"; --`),
		Agg:    weather.AggAvg,
		Window: weather.WindowSpec{Count: 1, Step: time.Minute},
		End:    testEnd,
	})
	assert.ErrorIs(t, err, weather.ErrUnknownMetric)
}

func TestUniformSlots(t *testing.T) {
	spec := weather.WindowSpec{Count: 3, Step: time.Hour}
	assert.True(t, uniform(spec.Slots(testEnd), spec.Step))

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	days := weather.WindowSpec{Count: 3, Step: 24 * time.Hour, Align: weather.AlignBoundary}
	assert.False(t, uniform(days.Slots(time.Date(2024, 4, 1, 9, 0, 0, 0, loc)), days.Step))
}

func TestMonthlyAverages(t *testing.T) {
	src, mock := newMock(t)

	mock.ExpectQuery(`SELECT m, AVG\(v\) FROM \(SELECT CAST\(EXTRACT\(year FROM \(to_timestamp\("dateTime"\) AT TIME ZONE \$1\)\) .* SUM\("rain"\) AS v FROM "archive"`).
		WithArgs("Australia/Brisbane").
		WillReturnRows(sqlmock.NewRows([]string{"m", "avg"}).
			AddRow(1, 40.0).
			AddRow(3, 4.0))

	got, err := src.MonthlyAverages(context.Background(), weather.Rain, weather.AggSum, brisbane(t))
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, weather.Sample{Value: 40, Valid: true}, got[0])
	assert.False(t, got[1].Valid)
	assert.Equal(t, 4.0, got[2].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func brisbane(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Brisbane")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestZoneName(t *testing.T) {
	assert.Equal(t, "UTC", zoneName(nil))
	assert.Equal(t, "UTC", zoneName(time.Local))
	assert.Equal(t, "UTC", zoneName(time.UTC))
}
