package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on requests and stored forecasts.
const DateLayout = "2006-01-02"

// defaultIssueHour is used when a request names neither an hour index nor an
// issue time.
const defaultIssueHour = 6 * time.Hour

// ForecastRequest asks for one user's forecast on one date. Hourly may be
// omitted, in which case the weather provider is queried for Lat/Lon and both
// must be set.
type ForecastRequest struct {
	UserID   string       `json:"user_id"`
	Date     string       `json:"date"`
	Lat      *float64     `json:"lat,omitempty"`
	Lon      *float64     `json:"lon,omitempty"`
	IssuedAt time.Time    `json:"issued_at,omitzero"`
	NowIndex *int         `json:"now_index,omitempty"`
	FlowHint string       `json:"flow_hint,omitempty"`
	Hourly   HourlySeries `json:"hourly,omitempty"`
}

// Forecast is a computed daily forecast for one user and date.
type Forecast struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Date           string              `json:"date"`
	ProfileEventID string              `json:"profile_event_id"`
	ProfileVersion string              `json:"profile_version"`
	CoreCode       string              `json:"core_code"`
	Sample         EnvironmentalSample `json:"sample"`
	Scores         SixinScores         `json:"scores"`
	TopFactors     []Factor            `json:"top_factors"`
	FlowHint       string              `json:"flow_hint,omitempty"`
	Assessment     RiskAssessment      `json:"assessment"`
	Windows        []Window            `json:"windows"`
	Reason         string              `json:"reason"`
	Degraded       bool                `json:"degraded"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// ParseForecastRequest decodes and checks a request from the source topic.
func ParseForecastRequest(raw RawEvent) (ForecastRequest, error) {
	var req ForecastRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return ForecastRequest{}, fmt.Errorf("parse forecast request: %w", err)
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return ForecastRequest{}, errors.New("parse forecast request: user_id is required")
	}
	if _, err := time.Parse(DateLayout, req.Date); err != nil {
		return ForecastRequest{}, fmt.Errorf("parse forecast request: invalid date %q: %w", req.Date, err)
	}
	if err := req.validateCoordinates(); err != nil {
		return ForecastRequest{}, fmt.Errorf("parse forecast request: %w", err)
	}
	return req, nil
}

func (r ForecastRequest) validateCoordinates() error {
	if r.Lat != nil && (math.IsNaN(*r.Lat) || *r.Lat < -90 || *r.Lat > 90) {
		return fmt.Errorf("lat %v out of range [-90, 90]", *r.Lat)
	}
	if r.Lon != nil && (math.IsNaN(*r.Lon) || *r.Lon < -180 || *r.Lon > 180) {
		return fmt.Errorf("lon %v out of range [-180, 180]", *r.Lon)
	}
	if _, _, ok := r.Coordinates(); !ok && len(r.Hourly) == 0 {
		return errors.New("lat and lon are required without an hourly series")
	}
	return nil
}

// Coordinates returns the request location, ok only when both are set.
func (r ForecastRequest) Coordinates() (lat, lon float64, ok bool) {
	if r.Lat == nil || r.Lon == nil {
		return 0, 0, false
	}
	return *r.Lat, *r.Lon, true
}

// ResolveNowIndex picks the series index the forecast is issued at: the
// explicit index, else the hour of IssuedAt, else 06:00 UTC on the date.
// Returns -1 when none falls inside the series.
func (r ForecastRequest) ResolveNowIndex(series HourlySeries) int {
	if r.NowIndex != nil {
		if *r.NowIndex >= 0 && *r.NowIndex < len(series) {
			return *r.NowIndex
		}
		return -1
	}
	if !r.IssuedAt.IsZero() {
		return series.IndexAt(r.IssuedAt)
	}
	day, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return -1
	}
	return series.IndexAt(day.Add(defaultIssueHour))
}

// BuildForecast runs the daily score, risk composition and intraday scan for
// one request. A missing series or issue hour degrades to an all-zero sample
// rather than failing. A sample without its 24h reference is also flagged
// degraded since volatility then scores zero.
func BuildForecast(req ForecastRequest, rec ProfileRecord, series HourlySeries) Forecast {
	nowIndex := req.ResolveNowIndex(series)
	sample := series.DailySample(nowIndex)

	scores := ApplyFlowBonus(Score(sample), req.FlowHint)
	top := TopFactors(scores)
	assessment := Compose(rec.Profile, SensitivityFromAnswers(rec.Answers), scores, top)

	f := Forecast{
		ID:             generateID(req.UserID, req.Date),
		UserID:         req.UserID,
		Date:           req.Date,
		ProfileEventID: rec.EventID,
		ProfileVersion: rec.Profile.Version,
		CoreCode:       rec.Profile.CoreCode,
		Sample:         sample,
		Scores:         scores,
		TopFactors:     top,
		FlowHint:       req.FlowHint,
		Assessment:     assessment,
		Windows:        ScanNext24h(series, nowIndex),
		Degraded:       nowIndex < 0 || sample.Missing() || sample.MissingDeltas(),
		ComputedAt:     clock.Now().UTC(),
	}
	f.Reason = RenderReason(f, rec.Profile)
	return f
}

// generateID derives the forecast ID from user and date so recomputing the
// same day upserts the same row.
func generateID(userID, date string) string {
	hash := sha256.Sum256([]byte(userID + "|" + date))
	return "fc-" + hex.EncodeToString(hash[:8])
}
