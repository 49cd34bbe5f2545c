package domain

import (
	"context"
	"errors"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrForecastNotFound = errors.New("forecast not found")
)

// ProfileStore keeps the current profile per user plus an append-only
// history of every submission.
type ProfileStore interface {
	SaveProfile(ctx context.Context, rec ProfileRecord) error
	CurrentProfile(ctx context.Context, userID string) (ProfileRecord, error)
	ProfileHistory(ctx context.Context, userID string, limit int) ([]ProfileRecord, error)
}

// ForecastStore persists forecasts keyed by user and date.
type ForecastStore interface {
	SaveForecasts(ctx context.Context, forecasts []Forecast) error
	GetForecast(ctx context.Context, userID, date string) (Forecast, error)
}
