package domain

import (
	"math"
	"time"
)

const (
	// DailyLagHours is the reference offset for day-level deltas.
	DailyLagHours = 24
	// HourlyLagHours is the reference offset for intraday window deltas.
	HourlyLagHours = 3
)

// EnvironmentalSample is one observation plus its deltas versus a reference
// point. Nil (or NaN) fields are missing and contribute nothing to scoring.
type EnvironmentalSample struct {
	Temperature   *float64 `json:"temperature,omitempty"`   // °C
	Humidity      *float64 `json:"humidity,omitempty"`      // %
	Pressure      *float64 `json:"pressure,omitempty"`      // hPa
	WindSpeed     *float64 `json:"wind_speed,omitempty"`    // km/h
	Precipitation *float64 `json:"precipitation,omitempty"` // mm

	DeltaPressure    *float64 `json:"delta_pressure,omitempty"`
	DeltaTemperature *float64 `json:"delta_temperature,omitempty"`
	DeltaHumidity    *float64 `json:"delta_humidity,omitempty"`
}

// HourlyPoint is one hour of provider data.
type HourlyPoint struct {
	Time          time.Time `json:"time"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"`
	Pressure      *float64  `json:"pressure,omitempty"`
	WindSpeed     *float64  `json:"wind_speed,omitempty"`
	Precipitation *float64  `json:"precipitation,omitempty"`
}

// HourlySeries is an hour-spaced weather series in ascending time order.
type HourlySeries []HourlyPoint

// IndexAt returns the index of the hour containing t, or -1 when t falls
// outside the series.
func (s HourlySeries) IndexAt(t time.Time) int {
	hour := t.UTC().Truncate(time.Hour)
	for i, p := range s {
		if p.Time.UTC().Truncate(time.Hour).Equal(hour) {
			return i
		}
	}
	return -1
}

// SampleAt builds the sample at index i with deltas against i-lagHours.
// Deltas are nil when the reference index is outside the series or either
// value is missing. An out-of-range i yields an empty sample.
func (s HourlySeries) SampleAt(i, lagHours int) EnvironmentalSample {
	if i < 0 || i >= len(s) {
		return EnvironmentalSample{}
	}
	cur := s[i]
	sample := EnvironmentalSample{
		Temperature:   present(cur.Temperature),
		Humidity:      present(cur.Humidity),
		Pressure:      present(cur.Pressure),
		WindSpeed:     present(cur.WindSpeed),
		Precipitation: present(cur.Precipitation),
	}

	ref := i - lagHours
	if ref < 0 || ref >= len(s) {
		return sample
	}
	prev := s[ref]
	sample.DeltaPressure = delta(cur.Pressure, prev.Pressure)
	sample.DeltaTemperature = delta(cur.Temperature, prev.Temperature)
	sample.DeltaHumidity = delta(cur.Humidity, prev.Humidity)
	return sample
}

// DailySample is the day-level sample at nowIndex with 24 h deltas.
func (s HourlySeries) DailySample(nowIndex int) EnvironmentalSample {
	return s.SampleAt(nowIndex, DailyLagHours)
}

// Float returns a pointer to v, for building samples.
func Float(v float64) *float64 { return &v }

func present(p *float64) *float64 {
	if _, ok := value(p); !ok {
		return nil
	}
	return p
}

func value(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

func delta(cur, prev *float64) *float64 {
	c, ok := value(cur)
	if !ok {
		return nil
	}
	p, ok := value(prev)
	if !ok {
		return nil
	}
	return Float(c - p)
}

// Missing reports whether the sample has no usable core observation.
func (s EnvironmentalSample) Missing() bool {
	_, t := value(s.Temperature)
	_, h := value(s.Humidity)
	_, p := value(s.Pressure)
	return !t && !h && !p
}

// MissingDeltas reports whether no 24h change could be computed, which
// happens when the series does not reach back a full day.
func (s EnvironmentalSample) MissingDeltas() bool {
	return s.DeltaPressure == nil && s.DeltaTemperature == nil && s.DeltaHumidity == nil
}
