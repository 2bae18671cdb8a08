package monitor

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS shooter_episodes (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL,
	session_id TEXT NOT NULL,
	episode    INTEGER NOT NULL,
	reward     DOUBLE PRECISION NOT NULL,
	ticks      INTEGER NOT NULL,
	scored     BOOLEAN NOT NULL,
	start_x    DOUBLE PRECISION NOT NULL,
	elapsed_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresSink mirrors episodes into the shooter_episodes table.
type PostgresSink struct {
	db    *sql.DB
	runID string
}

// OpenPostgres connects with a connection string (e.g. DATABASE_URL) and
// creates the table if needed.
func OpenPostgres(ctx context.Context, dsn, runID string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresSink(ctx, db, runID)
}

// NewPostgresSink accepts an existing DB handle.
func NewPostgresSink(ctx context.Context, db *sql.DB, runID string) (*PostgresSink, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create episodes table: %w", err)
	}
	return &PostgresSink{db: db, runID: runID}, nil
}

func (s *PostgresSink) Record(ctx context.Context, ep Episode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shooter_episodes (run_id, session_id, episode, reward, ticks, scored, start_x, elapsed_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.runID, ep.Session, ep.Index, ep.Reward, ep.Ticks, ep.Scored, ep.StartX, ep.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert episode %d: %w", ep.Index, err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}
