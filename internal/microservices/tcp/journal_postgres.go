package tcp

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wmshub/internal/warehouse"
)

const packageEventsDDL = `
	CREATE TABLE IF NOT EXISTS package_events (
		id              BIGSERIAL PRIMARY KEY,
		package_id      TEXT        NOT NULL,
		order_id        TEXT        NOT NULL,
		kind            TEXT        NOT NULL,
		previous_status TEXT        NOT NULL,
		status          TEXT        NOT NULL,
		zone            TEXT        NOT NULL,
		vehicle_id      TEXT        NOT NULL,
		package         JSONB       NOT NULL,
		occurred_at     TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS package_events_package_id_idx ON package_events (package_id);
`

var packageEventColumns = []string{
	"package_id", "order_id", "kind", "previous_status", "status",
	"zone", "vehicle_id", "package", "occurred_at",
}

// PostgresSink appends every lifecycle event to the package_events audit table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink opens a pool, checks it and makes sure the table exists.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, packageEventsDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create package_events table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

// Write bulk-loads a batch with COPY in a single round trip.
func (p *PostgresSink) Write(ctx context.Context, events []warehouse.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := eventRows(events)
	n, err := p.pool.CopyFrom(ctx, pgx.Identifier{"package_events"}, packageEventColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy package events: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d package events", n, len(rows))
	}
	return nil
}

// eventRows maps events onto packageEventColumns order.
func eventRows(events []warehouse.Event) [][]any {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		p := ev.Package
		rows = append(rows, []any{
			p.PackageID,
			p.OrderID,
			string(ev.Kind),
			string(ev.PreviousStatus),
			string(p.Status),
			p.Zone,
			p.LoadedVehicle,
			p, // encoded as JSON by the jsonb codec
			ev.At,
		})
	}
	return rows
}

// CountEvents returns how many rows exist for a package. Used by operators
// and integration tests.
func (p *PostgresSink) CountEvents(ctx context.Context, packageID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM package_events WHERE package_id = $1`, packageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count package events: %w", err)
	}
	return n, nil
}

func (p *PostgresSink) Close() error {
	if p == nil || p.pool == nil {
		return nil
	}
	p.pool.Close()
	return nil
}
