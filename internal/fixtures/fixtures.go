// Package fixtures defines the mock questionnaire and weather data shared by
// cmd/genmock, cmd/validate, cmd/score and the pipeline tests.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/constitution-forecast-service/internal/domain"
)

// Default fixture locations, relative to the repository root.
const (
	AnswersPath  = "data/mock/profile_answers.json"
	RequestsPath = "data/mock/forecast_requests.json"
)

// ForecastDate is the date every generated request asks about. Series start
// at 00:00 UTC the day before and run for SeriesHours.
const (
	ForecastDate = "2026-01-15"
	SeriesHours  = 72
)

// Scenario names.
const (
	ScenarioCalm     = "calm"
	ScenarioFront    = "front"
	ScenarioHeatwave = "heatwave"
	ScenarioColdSnap = "cold_snap"
	ScenarioHumid    = "humid"
	ScenarioDry      = "dry"
)

// Scenarios lists every weather scenario Series knows.
var Scenarios = []string{ScenarioCalm, ScenarioFront, ScenarioHeatwave, ScenarioColdSnap, ScenarioHumid, ScenarioDry}

// AnswersFixture is one questionnaire submission.
type AnswersFixture struct {
	UserID  string            `json:"user_id"`
	Answers domain.RawAnswers `json:"answers"`
}

// RequestFixture is one forecast request tagged with the weather scenario its
// series was generated from.
type RequestFixture struct {
	Scenario string                 `json:"scenario"`
	Request  domain.ForecastRequest `json:"request"`
}

type persona struct {
	userID   string
	scenario string
	lat, lon float64
	flowHint string
	answers  domain.RawAnswers
}

func sens(v int) *int { return &v }

var personas = []persona{
	{
		userID: "u-calm-01", scenario: ScenarioCalm, lat: 35.68, lon: 139.69,
		answers: domain.RawAnswers{
			SymptomFocus: "fatigue", QiState: "deficiency", BloodState: "balanced", FluidState: "balanced",
			ColdHeat: "cold", Resilience: "low", MeridianTest: "A",
		},
	},
	{
		userID: "u-front-02", scenario: ScenarioFront, lat: 38.27, lon: 140.87, flowHint: "cold front approaching",
		answers: domain.RawAnswers{
			SymptomFocus: "headache", QiState: "stagnation", BloodState: "stasis", FluidState: "balanced",
			ColdHeat: "neutral", Resilience: "medium", MeridianTest: "C",
			EnvVectors: []string{"pressure_shift"}, EnvSensitivity: sens(2),
		},
	},
	{
		userID: "u-heat-03", scenario: ScenarioHeatwave, lat: 34.69, lon: 135.50,
		answers: domain.RawAnswers{
			SymptomFocus: "sleep", QiState: "balanced", BloodState: "deficiency", FluidState: "deficiency",
			ColdHeat: "heat", Resilience: "high", MeridianTest: "B",
			EnvVectors: []string{"heat"}, EnvSensitivity: sens(1),
		},
	},
	{
		userID: "u-cold-04", scenario: ScenarioColdSnap, lat: 43.06, lon: 141.35,
		answers: domain.RawAnswers{
			SymptomFocus: "low_back_pain", QiState: "deficiency", BloodState: "deficiency", FluidState: "balanced",
			ColdHeat: "cold", Resilience: "low", MeridianTest: "D",
			EnvVectors: []string{"cold", "temp_swing"}, EnvSensitivity: sens(3),
		},
	},
	{
		userID: "u-humid-05", scenario: ScenarioHumid, lat: 26.21, lon: 127.68,
		answers: domain.RawAnswers{
			SymptomFocus: "swelling", QiState: "balanced", BloodState: "balanced", FluidState: "damp",
			ColdHeat: "neutral", Resilience: "medium", MeridianTest: "E",
			EnvVectors: []string{"humidity"}, EnvSensitivity: sens(2),
		},
	},
	{
		userID: "u-dry-06", scenario: ScenarioDry, lat: 33.59, lon: 130.40,
		answers: domain.RawAnswers{
			SymptomFocus: "mood", QiState: "stagnation", BloodState: "balanced", FluidState: "deficiency",
			ColdHeat: "heat", Resilience: "high", MeridianTest: "A",
			EnvVectors: []string{"dryness"}, EnvSensitivity: sens(1),
		},
	},
}

// Answers returns the questionnaire fixtures in a stable order.
func Answers() []AnswersFixture {
	out := make([]AnswersFixture, 0, len(personas))
	for _, p := range personas {
		out = append(out, AnswersFixture{UserID: p.userID, Answers: p.answers})
	}
	return out
}

// Requests returns one forecast request per persona with an embedded series.
func Requests() []RequestFixture {
	out := make([]RequestFixture, 0, len(personas))
	for _, p := range personas {
		out = append(out, RequestFixture{
			Scenario: p.scenario,
			Request: domain.ForecastRequest{
				UserID:   p.userID,
				Date:     ForecastDate,
				Lat:      domain.Float(p.lat),
				Lon:      domain.Float(p.lon),
				FlowHint: p.flowHint,
				Hourly:   Series(p.scenario),
			},
		})
	}
	return out
}

// Series generates the hourly series for a scenario. Day one is the
// reference day; the weather shifts at midnight, except for the front which
// arrives between 04:00 and 08:00 on the forecast date.
func Series(scenario string) domain.HourlySeries {
	start := seriesStart()
	series := make(domain.HourlySeries, SeriesHours)
	for h := range series {
		temp, hum, pres := pointFor(scenario, h)
		series[h] = domain.HourlyPoint{
			Time:        start.Add(time.Duration(h) * time.Hour),
			Temperature: domain.Float(temp),
			Humidity:    domain.Float(hum),
			Pressure:    domain.Float(pres),
		}
	}
	return series
}

func seriesStart() time.Time {
	day, _ := time.Parse(domain.DateLayout, ForecastDate)
	return day.AddDate(0, 0, -1)
}

func pointFor(scenario string, h int) (temp, hum, pres float64) {
	second := h >= 24
	pick := func(first, rest float64) float64 {
		if second {
			return rest
		}
		return first
	}

	switch scenario {
	case ScenarioFront:
		pres = 1015
		if h >= 28 {
			pres = max(1015-4*float64(h-27), 995)
		}
		temp, hum = 16, 60
		if h >= 29 {
			hum = 85
		}
		if h >= 30 {
			temp = 11
		}
		return temp, hum, pres
	case ScenarioHeatwave:
		return pick(24, 33), 50, 1010
	case ScenarioColdSnap:
		return pick(9, 1), 60, 1020
	case ScenarioHumid:
		return 22, pick(72, 88), 1008
	case ScenarioDry:
		return 12, pick(48, 30), 1018
	default:
		return 18, 55, 1015
	}
}

// LoadAnswers reads an answers fixture file.
func LoadAnswers(path string) ([]AnswersFixture, error) {
	return load[AnswersFixture](path)
}

// LoadRequests reads a forecast request fixture file.
func LoadRequests(path string) ([]RequestFixture, error) {
	return load[RequestFixture](path)
}

func load[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
