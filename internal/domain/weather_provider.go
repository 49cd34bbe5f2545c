package domain

import (
	"context"
	"log/slog"
	"time"
)

// Series sources reported by ResolveSeries.
const (
	SeriesFromRequest  = "request"
	SeriesFromProvider = "provider"
	SeriesFailed       = "failed"
	SeriesNone         = "none"
)

// WeatherProvider supplies hourly observations and forecasts for a coordinate.
type WeatherProvider interface {
	// HourlySeries returns hourly data covering at least the day before and
	// the day after the given date, in ascending time order.
	HourlySeries(ctx context.Context, lat, lon float64, day time.Time) (HourlySeries, error)
}

// ResolveSeries returns the series embedded in the request, or fetches one
// from the provider. Provider failures degrade to an empty series so a
// forecast is still produced.
func ResolveSeries(ctx context.Context, req ForecastRequest, provider WeatherProvider, logger *slog.Logger) (HourlySeries, string) {
	if len(req.Hourly) > 0 {
		return req.Hourly, SeriesFromRequest
	}
	lat, lon, ok := req.Coordinates()
	if provider == nil || !ok {
		return nil, SeriesNone
	}

	day, err := time.Parse(DateLayout, req.Date)
	if err != nil {
		return nil, SeriesFailed
	}
	series, err := provider.HourlySeries(ctx, lat, lon, day)
	if err != nil {
		logger.Warn("weather lookup failed",
			"user_id", req.UserID,
			"date", req.Date,
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return nil, SeriesFailed
	}
	return series, SeriesFromProvider
}
