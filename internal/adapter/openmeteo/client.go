package openmeteo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
	"github.com/couchcryptid/constitution-forecast-service/internal/observability"
	"github.com/go-resty/resty/v2"
)

const (
	forecastPath  = "/v1/forecast"
	hourlyFields  = "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,precipitation"
	apiTimeLayout = "2006-01-02T15:04"
)

// Client implements domain.WeatherProvider using the Open-Meteo forecast API.
type Client struct {
	http    *resty.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates an Open-Meteo client. Connection errors are retried twice.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &Client{http: rc, metrics: metrics, logger: logger}
}

// HourlySeries fetches UTC hourly data from the day before through the day
// after the given date.
func (c *Client) HourlySeries(ctx context.Context, lat, lon float64, day time.Time) (domain.HourlySeries, error) {
	start := time.Now()
	var result forecastResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":   strconv.FormatFloat(lat, 'f', 4, 64),
			"longitude":  strconv.FormatFloat(lon, 'f', 4, 64),
			"hourly":     hourlyFields,
			"timezone":   "UTC",
			"start_date": day.AddDate(0, 0, -1).Format(domain.DateLayout),
			"end_date":   day.AddDate(0, 0, 1).Format(domain.DateLayout),
		}).
		SetResult(&result).
		SetError(&apiErr).
		Get(forecastPath)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("weather request: %w", err)
	}
	if resp.IsError() {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode(), apiErr.Reason)
	}

	series, err := result.Hourly.series()
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	c.logger.Debug("weather series fetched", "lat", lat, "lon", lon, "hours", len(series))
	return series, nil
}

// Open-Meteo API response types. Values are nullable per hour.

type forecastResponse struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Hourly    hourlyBlock `json:"hourly"`
}

type hourlyBlock struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	Humidity      []*float64 `json:"relative_humidity_2m"`
	Pressure      []*float64 `json:"surface_pressure"`
	WindSpeed     []*float64 `json:"wind_speed_10m"`
	Precipitation []*float64 `json:"precipitation"`
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func (h hourlyBlock) series() (domain.HourlySeries, error) {
	out := make(domain.HourlySeries, 0, len(h.Time))
	for i, ts := range h.Time {
		t, err := time.Parse(apiTimeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("decode hourly time %q: %w", ts, err)
		}
		out = append(out, domain.HourlyPoint{
			Time:          t,
			Temperature:   at(h.Temperature, i),
			Humidity:      at(h.Humidity, i),
			Pressure:      at(h.Pressure, i),
			WindSpeed:     at(h.WindSpeed, i),
			Precipitation: at(h.Precipitation, i),
		})
	}
	return out, nil
}

// at tolerates short or missing arrays.
func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}
