package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
)

// Schema creates the forecast table. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS daily_forecasts (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	forecast_date DATE NOT NULL,
	core_code     TEXT NOT NULL,
	risk          INTEGER NOT NULL,
	level         TEXT NOT NULL,
	chips         TEXT[] NOT NULL,
	top_factors   TEXT[] NOT NULL,
	degraded      BOOLEAN NOT NULL,
	payload       JSONB NOT NULL,
	computed_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, forecast_date)
)`

// Rows dated before today are kept as issued; the WHERE clause turns the
// conflicting update into a no-op.
const upsertForecast = `
INSERT INTO daily_forecasts
	(id, user_id, forecast_date, core_code, risk, level, chips, top_factors, degraded, payload, computed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (user_id, forecast_date) DO UPDATE SET
	id          = EXCLUDED.id,
	core_code   = EXCLUDED.core_code,
	risk        = EXCLUDED.risk,
	level       = EXCLUDED.level,
	chips       = EXCLUDED.chips,
	top_factors = EXCLUDED.top_factors,
	degraded    = EXCLUDED.degraded,
	payload     = EXCLUDED.payload,
	computed_at = EXCLUDED.computed_at
WHERE daily_forecasts.forecast_date >= $12::date`

const selectForecast = `SELECT payload FROM daily_forecasts WHERE user_id = $1 AND forecast_date = $2::date`

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// ForecastStore implements domain.ForecastStore on a daily_forecasts table.
type ForecastStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewForecastStore wraps an open database. The clock decides which dates
// count as past.
func NewForecastStore(db *sql.DB, clock clockwork.Clock) *ForecastStore {
	return &ForecastStore{db: db, clock: clock}
}

// Migrate creates the table if it does not exist.
func (s *ForecastStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate forecast schema: %w", err)
	}
	return nil
}

// SaveForecasts upserts the batch in one transaction.
func (s *ForecastStore) SaveForecasts(ctx context.Context, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsertForecast)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	today := s.clock.Now().UTC().Format(domain.DateLayout)
	for _, f := range forecasts {
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode forecast %s: %w", f.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			f.ID,
			f.UserID,
			f.Date,
			f.CoreCode,
			f.Assessment.Risk,
			f.Assessment.LevelLabel,
			pq.Array(f.Assessment.Chips),
			pq.Array(factorNames(f.TopFactors)),
			f.Degraded,
			payload,
			f.ComputedAt,
			today,
		)
		if err != nil {
			return fmt.Errorf("upsert forecast %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetForecast returns the stored forecast or domain.ErrForecastNotFound.
func (s *ForecastStore) GetForecast(ctx context.Context, userID, date string) (domain.Forecast, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectForecast, userID, date).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Forecast{}, domain.ErrForecastNotFound
	}
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("query forecast: %w", err)
	}

	var f domain.Forecast
	if err := json.Unmarshal(payload, &f); err != nil {
		return domain.Forecast{}, fmt.Errorf("decode forecast: %w", err)
	}
	return f, nil
}

// CheckReadiness pings the database.
func (s *ForecastStore) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func factorNames(factors []domain.Factor) []string {
	out := make([]string, len(factors))
	for i, f := range factors {
		out[i] = string(f)
	}
	return out
}
