package domain

import "math"

// Level is the three-step daily forecast classification.
type Level int

const (
	LevelStable  Level = 0
	LevelCaution Level = 1
	LevelAlert   Level = 2
)

func (l Level) String() string { return LevelLabel(l) }

// Level thresholds on the summed risk score.
const (
	cautionThreshold = 6
	alertThreshold   = 10
)

// Reason chips, in the order they are emitted.
const (
	ChipHighVolatility     = "high volatility"
	ChipColdExposure       = "cold exposure"
	ChipHeatExposure       = "heat exposure"
	ChipDampExposure       = "damp exposure"
	ChipDryAir             = "dry air"
	ChipSlowRecovery       = "slow recovery"
	ChipMarkedImbalance    = "marked imbalance"
	ChipMultipleImbalances = "multiple imbalances"
	ChipSensitivityMatch   = "trigger matches your sensitivity"
	ChipConstitutionMatch  = "weather matches your constitution"
)

// RiskAssessment is one day's risk decomposition for one profile.
type RiskAssessment struct {
	Exposure      int      `json:"exposure"`      // 0-6
	Vulnerability int      `json:"vulnerability"` // 0-6
	Match         int      `json:"match"`         // 0-4
	Risk          int      `json:"risk"`          // 0-16
	Level         Level    `json:"level"`
	LevelLabel    string   `json:"level_label"`
	Chips         []string `json:"chips"`

	Components RiskComponents `json:"components"`
}

// RiskComponents are the sub-scores behind the three additive parts.
type RiskComponents struct {
	Change            int     `json:"change"`
	State             int     `json:"state"`
	RecoveryMetric    float64 `json:"recovery_metric"`
	RecoveryPenalty   int     `json:"recovery_penalty"`
	ImbalanceMetric   float64 `json:"imbalance_metric"`
	ImbalancePenalty  int     `json:"imbalance_penalty"`
	MaterialPenalty   int     `json:"material_penalty"`
	EnvironmentMatch  int     `json:"environment_match"`
	ConstitutionMatch int     `json:"constitution_match"`
}

// Sensitivity is the user-declared weather sensitivity carried into Compose.
type Sensitivity struct {
	Level   int
	Vectors []EnvVector
}

// SensitivityFromAnswers extracts the sensitivity declaration from answers.
func SensitivityFromAnswers(a Answers) Sensitivity {
	return Sensitivity{Level: a.EnvSensitivity, Vectors: a.EnvVectors}
}

// vectorFactor maps a declared trigger onto the factor it reacts to.
var vectorFactor = map[EnvVector]Factor{
	VectorPressureShift: FactorWind,
	VectorTempSwing:     FactorWind,
	VectorHumidity:      FactorDamp,
	VectorDryness:       FactorDry,
	VectorCold:          FactorCold,
	VectorHeat:          FactorHeat,
}

// Compose combines a profile with the day's scores into a RiskAssessment:
//
//	exposure      = wind + max(cold, heat, damp, dry)
//	vulnerability = recovery + imbalance + material penalties
//	match         = environment match + constitution match
//	risk          = exposure + vulnerability + match
//
// Level is stable below 6, caution below 10, alert otherwise. Axes missing
// from the profile read as neutral.
func Compose(p ConstitutionProfile, sens Sensitivity, s SixinScores, top []Factor) RiskAssessment {
	var c RiskComponents

	c.Change = clampScore(s.Wind)
	c.State = clampScore(s.State())
	exposure := c.Change + c.State

	c.RecoveryMetric = recoveryMetric(p.Axes.Resilience)
	switch {
	case c.RecoveryMetric >= 0.2:
		c.RecoveryPenalty = 0
	case c.RecoveryMetric <= -0.2:
		c.RecoveryPenalty = 2
	default:
		c.RecoveryPenalty = 1
	}

	c.ImbalanceMetric = imbalanceMetric(p.Axes)
	switch abs := math.Abs(c.ImbalanceMetric); {
	case abs < 0.25:
		c.ImbalancePenalty = 0
	case abs < 0.55:
		c.ImbalancePenalty = 1
	default:
		c.ImbalancePenalty = 2
	}

	c.MaterialPenalty = min(len(p.SubLabels), 2)
	vulnerability := c.RecoveryPenalty + c.ImbalancePenalty + c.MaterialPenalty

	c.EnvironmentMatch = environmentMatch(sens, top)
	c.ConstitutionMatch = constitutionMatch(p, s)
	match := c.EnvironmentMatch + c.ConstitutionMatch

	risk := exposure + vulnerability + match
	level := levelFor(risk)
	return RiskAssessment{
		Exposure:      exposure,
		Vulnerability: vulnerability,
		Match:         match,
		Risk:          risk,
		Level:         level,
		LevelLabel:    LevelLabel(level),
		Chips:         chips(s, c),
		Components:    c,
	}
}

func levelFor(risk int) Level {
	switch {
	case risk >= alertThreshold:
		return LevelAlert
	case risk >= cautionThreshold:
		return LevelCaution
	default:
		return LevelStable
	}
}

// recoveryMetric approximates the continuous recovery axis from the
// resilience bucket.
func recoveryMetric(bucket int) float64 {
	switch {
	case bucket < 0:
		return -0.3
	case bucket > 0:
		return 0.2
	default:
		return 0
	}
}

// imbalanceMetric is the mean absolute value of the material axes.
func imbalanceMetric(a NormalizedAxes) float64 {
	sum := absInt(a.Qi) + absInt(a.Blood) + absInt(a.Fluid)
	return float64(sum) / 3
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// environmentMatch counts top factors the user declared a trigger for. Level
// 1 sensitivity caps the match at 1, level 2 and above at 2.
func environmentMatch(sens Sensitivity, top []Factor) int {
	if sens.Level <= 0 || len(sens.Vectors) == 0 {
		return 0
	}
	declared := make(map[Factor]struct{}, len(sens.Vectors))
	for _, v := range sens.Vectors {
		if f, ok := vectorFactor[v]; ok {
			declared[f] = struct{}{}
		}
	}
	overlap := 0
	for _, f := range top {
		if _, ok := declared[f]; ok {
			overlap++
		}
	}
	limit := 2
	if sens.Level == 1 {
		limit = 1
	}
	return min(overlap, limit)
}

// constitutionMatch scores weather that aggravates the profile's own leaning.
func constitutionMatch(p ConstitutionProfile, s SixinScores) int {
	m := 0
	if (p.Axes.Thermo < 0 && s.Cold >= 2) || (p.Axes.Thermo > 0 && s.Heat >= 2) {
		m++
	}
	if (hasSubLabel(p, SubFluidDamp) && s.Damp >= 2) || (hasSubLabel(p, SubFluidDeficiency) && s.Dry >= 2) {
		m++
	}
	return min(m, 2)
}

func hasSubLabel(p ConstitutionProfile, l SubLabel) bool {
	for _, have := range p.SubLabels {
		if have == l {
			return true
		}
	}
	return false
}

func chips(s SixinScores, c RiskComponents) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(cond bool, chip string) {
		if !cond {
			return
		}
		if _, dup := seen[chip]; dup {
			return
		}
		seen[chip] = struct{}{}
		out = append(out, chip)
	}

	add(s.Wind >= 2, ChipHighVolatility)
	add(s.Cold >= 2, ChipColdExposure)
	add(s.Heat >= 2, ChipHeatExposure)
	add(s.Damp >= 2, ChipDampExposure)
	add(s.Dry >= 2, ChipDryAir)
	add(c.RecoveryPenalty == 2, ChipSlowRecovery)
	add(c.ImbalancePenalty == 2, ChipMarkedImbalance)
	add(c.MaterialPenalty == 2, ChipMultipleImbalances)
	add(c.EnvironmentMatch >= 1, ChipSensitivityMatch)
	add(c.ConstitutionMatch >= 1, ChipConstitutionMatch)

	if out == nil {
		out = []string{}
	}
	return out
}
