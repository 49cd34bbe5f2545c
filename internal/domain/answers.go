package domain

import (
	"fmt"
	"sort"
	"strings"
)

// SymptomFocus is the symptom the user most wants the forecast to watch.
type SymptomFocus string

const (
	SymptomFatigue      SymptomFocus = "fatigue"
	SymptomHeadache     SymptomFocus = "headache"
	SymptomDizziness    SymptomFocus = "dizziness"
	SymptomMood         SymptomFocus = "mood"
	SymptomSleep        SymptomFocus = "sleep"
	SymptomSwelling     SymptomFocus = "swelling"
	SymptomNeckShoulder SymptomFocus = "neck_shoulder"
	SymptomLowBackPain  SymptomFocus = "low_back_pain"
)

type QiState string

const (
	QiDeficiency QiState = "deficiency"
	QiBalanced   QiState = "balanced"
	QiStagnation QiState = "stagnation"
)

type BloodState string

const (
	BloodDeficiency BloodState = "deficiency"
	BloodBalanced   BloodState = "balanced"
	BloodStasis     BloodState = "stasis"
)

type FluidState string

const (
	FluidDeficiency FluidState = "deficiency"
	FluidBalanced   FluidState = "balanced"
	FluidDamp       FluidState = "damp"
)

type ColdHeat string

const (
	ColdHeatCold    ColdHeat = "cold"
	ColdHeatNeutral ColdHeat = "neutral"
	ColdHeatHeat    ColdHeat = "heat"
)

type Resilience string

const (
	ResilienceLow    Resilience = "low"
	ResilienceMedium Resilience = "medium"
	ResilienceHigh   Resilience = "high"
)

// MeridianTest is the answer to the motion test, "A" through "E".
type MeridianTest string

const (
	MeridianTestA MeridianTest = "A"
	MeridianTestB MeridianTest = "B"
	MeridianTestC MeridianTest = "C"
	MeridianTestD MeridianTest = "D"
	MeridianTestE MeridianTest = "E"
)

// EnvVector is a weather trigger the user reports being sensitive to.
type EnvVector string

const (
	VectorPressureShift EnvVector = "pressure_shift"
	VectorTempSwing     EnvVector = "temp_swing"
	VectorHumidity      EnvVector = "humidity"
	VectorDryness       EnvVector = "dryness"
	VectorCold          EnvVector = "cold"
	VectorHeat          EnvVector = "heat"
)

var (
	symptomValues = enumSet(SymptomFatigue, SymptomHeadache, SymptomDizziness, SymptomMood,
		SymptomSleep, SymptomSwelling, SymptomNeckShoulder, SymptomLowBackPain)
	qiValues         = enumSet(QiDeficiency, QiBalanced, QiStagnation)
	bloodValues      = enumSet(BloodDeficiency, BloodBalanced, BloodStasis)
	fluidValues      = enumSet(FluidDeficiency, FluidBalanced, FluidDamp)
	coldHeatValues   = enumSet(ColdHeatCold, ColdHeatNeutral, ColdHeatHeat)
	resilienceValues = enumSet(ResilienceLow, ResilienceMedium, ResilienceHigh)
	meridianValues   = enumSet(MeridianTestA, MeridianTestB, MeridianTestC, MeridianTestD, MeridianTestE)
	vectorValues     = enumSet(VectorPressureShift, VectorTempSwing, VectorHumidity, VectorDryness, VectorCold, VectorHeat)
)

// MaxEnvSensitivity is the highest self-reported weather sensitivity level.
const MaxEnvSensitivity = 3

// RawAnswers is the questionnaire payload as submitted, before validation.
type RawAnswers struct {
	SymptomFocus   string   `json:"symptom_focus"`
	QiState        string   `json:"qi_state"`
	BloodState     string   `json:"blood_state"`
	FluidState     string   `json:"fluid_state"`
	ColdHeat       string   `json:"cold_heat"`
	Resilience     string   `json:"resilience"`
	MeridianTest   string   `json:"meridian_test"`
	EnvVectors     []string `json:"env_vectors,omitempty"`
	EnvSensitivity *int     `json:"env_sensitivity,omitempty"`
}

// Answers is a validated questionnaire. Every field holds a declared enum value.
type Answers struct {
	SymptomFocus   SymptomFocus `json:"symptom_focus"`
	QiState        QiState      `json:"qi_state"`
	BloodState     BloodState   `json:"blood_state"`
	FluidState     FluidState   `json:"fluid_state"`
	ColdHeat       ColdHeat     `json:"cold_heat"`
	Resilience     Resilience   `json:"resilience"`
	MeridianTest   MeridianTest `json:"meridian_test"`
	EnvVectors     []EnvVector  `json:"env_vectors,omitempty"`
	EnvSensitivity int          `json:"env_sensitivity"`
}

// FieldError describes one rejected questionnaire field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by ParseAnswers when one or more fields are
// missing or outside their enum.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid answers: " + strings.Join(names, ", ")
}

// ParseAnswers validates raw questionnaire input into Answers.
// Env vectors are deduplicated and sorted so equal selections compare equal.
func ParseAnswers(raw RawAnswers) (Answers, error) {
	var errs []FieldError
	check := func(field, value string, allowed map[string]struct{}) {
		switch {
		case value == "":
			errs = append(errs, FieldError{Field: field, Message: "is required"})
		default:
			if _, ok := allowed[value]; !ok {
				errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("unknown value %q", value)})
			}
		}
	}

	check("symptom_focus", raw.SymptomFocus, symptomValues)
	check("qi_state", raw.QiState, qiValues)
	check("blood_state", raw.BloodState, bloodValues)
	check("fluid_state", raw.FluidState, fluidValues)
	check("cold_heat", raw.ColdHeat, coldHeatValues)
	check("resilience", raw.Resilience, resilienceValues)
	check("meridian_test", raw.MeridianTest, meridianValues)

	seen := make(map[EnvVector]struct{}, len(raw.EnvVectors))
	vectors := make([]EnvVector, 0, len(raw.EnvVectors))
	for _, v := range raw.EnvVectors {
		if _, ok := vectorValues[v]; !ok {
			errs = append(errs, FieldError{Field: "env_vectors", Message: fmt.Sprintf("unknown value %q", v)})
			continue
		}
		if _, dup := seen[EnvVector(v)]; dup {
			continue
		}
		seen[EnvVector(v)] = struct{}{}
		vectors = append(vectors, EnvVector(v))
	}
	sort.Slice(vectors, func(i, j int) bool { return vectors[i] < vectors[j] })

	sensitivity := 0
	if raw.EnvSensitivity != nil {
		sensitivity = *raw.EnvSensitivity
		if sensitivity < 0 || sensitivity > MaxEnvSensitivity {
			errs = append(errs, FieldError{Field: "env_sensitivity", Message: fmt.Sprintf("must be between 0 and %d", MaxEnvSensitivity)})
		}
	}

	if len(errs) > 0 {
		return Answers{}, &ValidationError{Fields: errs}
	}

	if len(vectors) == 0 {
		vectors = nil
	}
	return Answers{
		SymptomFocus:   SymptomFocus(raw.SymptomFocus),
		QiState:        QiState(raw.QiState),
		BloodState:     BloodState(raw.BloodState),
		FluidState:     FluidState(raw.FluidState),
		ColdHeat:       ColdHeat(raw.ColdHeat),
		Resilience:     Resilience(raw.Resilience),
		MeridianTest:   MeridianTest(raw.MeridianTest),
		EnvVectors:     vectors,
		EnvSensitivity: sensitivity,
	}, nil
}

func enumSet[T ~string](values ...T) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[string(v)] = struct{}{}
	}
	return set
}
