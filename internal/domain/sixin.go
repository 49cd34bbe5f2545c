package domain

import (
	"math"
	"strings"
)

// Factor names one of the five environmental stress scores. Wind denotes
// volatility of change, not literal wind speed.
type Factor string

const (
	FactorWind Factor = "wind"
	FactorCold Factor = "cold"
	FactorHeat Factor = "heat"
	FactorDamp Factor = "damp"
	FactorDry  Factor = "dry"
)

// stateFactors is the declared tie-break order for the non-volatility factors.
var stateFactors = []Factor{FactorCold, FactorHeat, FactorDamp, FactorDry}

// MaxFactorScore is the ceiling of every factor score.
const MaxFactorScore = 3

// SixinScores holds the five factor scores, each in [0, 3].
type SixinScores struct {
	Wind int `json:"wind"`
	Cold int `json:"cold"`
	Heat int `json:"heat"`
	Damp int `json:"damp"`
	Dry  int `json:"dry"`
}

// Get returns the score for f, or 0 for an unknown factor.
func (s SixinScores) Get(f Factor) int {
	switch f {
	case FactorWind:
		return s.Wind
	case FactorCold:
		return s.Cold
	case FactorHeat:
		return s.Heat
	case FactorDamp:
		return s.Damp
	case FactorDry:
		return s.Dry
	default:
		return 0
	}
}

// State is the strongest of cold, heat, damp and dry.
func (s SixinScores) State() int {
	return max(s.Cold, s.Heat, s.Damp, s.Dry)
}

// Score converts a sample into factor scores:
//
//	wind: round(0.5·P + 0.3·T + 0.2·H) of |Δ| buckets
//	      pressure <2 | <5 | <10 | ≥10 hPa
//	      temp     <3 | <6 | <10 | ≥10 °C
//	      humidity <10 | <20 | <30 | ≥30 %
//	cold: <5 °C → 2, <10 °C → 1, +1 if Δtemp ≤ -6
//	heat: ≥30 °C → 2, ≥25 °C → 1, +1 if Δtemp ≥ +6
//	damp: ≥80 % → 2, ≥70 % → 1, +1 if Δhumidity ≥ +15
//	dry:  <35 % → 2, <45 % → 1, +1 if Δhumidity ≤ -15
//
// Missing fields contribute nothing.
func Score(sample EnvironmentalSample) SixinScores {
	var s SixinScores

	p := deltaBucket(sample.DeltaPressure, 2, 5, 10)
	t := deltaBucket(sample.DeltaTemperature, 3, 6, 10)
	h := deltaBucket(sample.DeltaHumidity, 10, 20, 30)
	// Weighted sum in tenths; +5 rounds halves up.
	s.Wind = clampScore((5*p + 3*t + 2*h + 5) / 10)

	dTemp, hasDTemp := value(sample.DeltaTemperature)
	if temp, ok := value(sample.Temperature); ok {
		switch {
		case temp < 5:
			s.Cold = 2
		case temp < 10:
			s.Cold = 1
		}
		switch {
		case temp >= 30:
			s.Heat = 2
		case temp >= 25:
			s.Heat = 1
		}
	}
	if hasDTemp && dTemp <= -6 {
		s.Cold++
	}
	if hasDTemp && dTemp >= 6 {
		s.Heat++
	}

	dHum, hasDHum := value(sample.DeltaHumidity)
	if hum, ok := value(sample.Humidity); ok {
		switch {
		case hum >= 80:
			s.Damp = 2
		case hum >= 70:
			s.Damp = 1
		}
		switch {
		case hum < 35:
			s.Dry = 2
		case hum < 45:
			s.Dry = 1
		}
	}
	if hasDHum && dHum >= 15 {
		s.Damp++
	}
	if hasDHum && dHum <= -15 {
		s.Dry++
	}

	s.Cold = clampScore(s.Cold)
	s.Heat = clampScore(s.Heat)
	s.Damp = clampScore(s.Damp)
	s.Dry = clampScore(s.Dry)
	return s
}

func deltaBucket(d *float64, t1, t2, t3 float64) int {
	v, ok := value(d)
	if !ok {
		return 0
	}
	v = math.Abs(v)
	switch {
	case v < t1:
		return 0
	case v < t2:
		return 1
	case v < t3:
		return 2
	default:
		return 3
	}
}

func clampScore(v int) int {
	return min(max(v, 0), MaxFactorScore)
}

// TopFactors selects at most two dominant factors. A volatility score of 2 or
// more always leads; remaining slots go to the highest non-zero state factors
// in declared order cold, heat, damp, dry.
func TopFactors(s SixinScores) []Factor {
	top := make([]Factor, 0, 2)
	slots := 2
	if s.Wind >= 2 {
		top = append(top, FactorWind)
		slots = 1
	}

	ranked := make([]Factor, 0, len(stateFactors))
	for _, f := range stateFactors {
		if s.Get(f) > 0 {
			ranked = append(ranked, f)
		}
	}
	// Insertion sort keeps declared order among equal scores.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && s.Get(ranked[j]) > s.Get(ranked[j-1]); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	if len(ranked) > slots {
		ranked = ranked[:slots]
	}
	return append(top, ranked...)
}

// flowRule nudges one factor when the hint contains any of its keywords.
type flowRule struct {
	keywords []string
	factor   Factor
}

var flowRules = []flowRule{
	{keywords: []string{"front", "trough", "low pressure", "unsettled"}, factor: FactorWind},
	{keywords: []string{"cold", "polar", "north"}, factor: FactorCold},
	{keywords: []string{"warm", "heat", "tropical", "south"}, factor: FactorHeat},
	{keywords: []string{"moist", "humid", "rain", "marine"}, factor: FactorDamp},
	{keywords: []string{"dry", "continental", "foehn"}, factor: FactorDry},
}

// ApplyFlowBonus adds 1 (clamped) to the factor named by the first matching
// rule for a free-text air-flow hint. An empty or unmatched hint is a no-op.
func ApplyFlowBonus(s SixinScores, hint string) SixinScores {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return s
	}
	for _, r := range flowRules {
		for _, kw := range r.keywords {
			if strings.Contains(hint, kw) {
				return bump(s, r.factor)
			}
		}
	}
	return s
}

func bump(s SixinScores, f Factor) SixinScores {
	switch f {
	case FactorWind:
		s.Wind = clampScore(s.Wind + 1)
	case FactorCold:
		s.Cold = clampScore(s.Cold + 1)
	case FactorHeat:
		s.Heat = clampScore(s.Heat + 1)
	case FactorDamp:
		s.Damp = clampScore(s.Damp + 1)
	case FactorDry:
		s.Dry = clampScore(s.Dry + 1)
	}
	return s
}
