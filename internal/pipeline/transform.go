package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
)

// ForecastTransformer implements Transformer by looking up the user's current
// profile, resolving the weather series and running the domain forecast.
type ForecastTransformer struct {
	profiles domain.ProfileStore
	weather  domain.WeatherProvider
	logger   *slog.Logger
}

// NewTransformer creates a ForecastTransformer. Pass a nil weather provider to
// rely solely on series embedded in requests.
func NewTransformer(profiles domain.ProfileStore, weather domain.WeatherProvider, logger *slog.Logger) *ForecastTransformer {
	return &ForecastTransformer{
		profiles: profiles,
		weather:  weather,
		logger:   logger,
	}
}

func (t *ForecastTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Forecast, error) {
	req, err := domain.ParseForecastRequest(raw)
	if err != nil {
		return domain.Forecast{}, err
	}

	rec, err := t.profiles.CurrentProfile(ctx, req.UserID)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("load profile for %s: %w", req.UserID, err)
	}

	series, source := domain.ResolveSeries(ctx, req, t.weather, t.logger)
	f := domain.BuildForecast(req, rec, series)
	if f.Degraded {
		t.logger.Warn("forecast degraded",
			"user_id", f.UserID,
			"date", f.Date,
			"series_source", source,
			"series_len", len(series),
		)
	}
	return f, nil
}
