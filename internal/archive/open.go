package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"
)

// Drivers maps a configured source name to its database/sql driver.
var Drivers = map[string]string{
	"duckdb":   "duckdb",
	"postgres": "postgres",
}

// Open connects to the archive database and verifies it with a ping.
func Open(ctx context.Context, source, dsn, table string) (*SQLSource, *sql.DB, error) {
	driver, ok := Drivers[source]
	if !ok {
		return nil, nil, fmt.Errorf("unknown archive source %q", source)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", source, err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", source, err)
	}

	src, err := NewSQLSource(db, table)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return src, db, nil
}
