package domain

import "time"

// ProfileVersion tags profiles produced by the nine-type scheme.
const ProfileVersion = "v2-9type"

// Meridian is a body-line code.
type Meridian string

const (
	MeridianFront Meridian = "front_line" // line 1
	MeridianBack  Meridian = "back_line"  // line 2
	MeridianSide  Meridian = "side_line"  // line 3
	MeridianInner Meridian = "inner_line" // line 4
	MeridianArm   Meridian = "arm_line"   // line 5
)

// SubLabel is a secondary imbalance tag refining the core code.
type SubLabel string

const (
	SubQiStagnation    SubLabel = "qi_stagnation"
	SubQiDeficiency    SubLabel = "qi_deficiency"
	SubBloodDeficiency SubLabel = "blood_deficiency"
	SubBloodStasis     SubLabel = "blood_stasis"
	SubFluidDamp       SubLabel = "fluid_damp"
	SubFluidDeficiency SubLabel = "fluid_deficiency"
)

// MaxSubLabels caps the number of sub-labels on a profile.
const MaxSubLabels = 2

// ConstitutionProfile is the classification derived from one questionnaire.
type ConstitutionProfile struct {
	Version           string         `json:"version"`
	CoreCode          string         `json:"core_code"`
	SubLabels         []SubLabel     `json:"sub_labels"`
	PrimaryMeridian   Meridian       `json:"primary_meridian"`
	SecondaryMeridian *Meridian      `json:"secondary_meridian"`
	Axes              NormalizedAxes `json:"axes"`

	// MixedPattern is kept for older consumers; it does not affect CoreCode.
	MixedPattern bool `json:"mixed_pattern"`
}

// ProfileRecord is a classified questionnaire submission as stored.
type ProfileRecord struct {
	EventID   string              `json:"event_id"`
	UserID    string              `json:"user_id"`
	CreatedAt time.Time           `json:"created_at"`
	Answers   Answers             `json:"answers"`
	Profile   ConstitutionProfile `json:"profile"`
}

// NewProfileRecord classifies answers and stamps the result with an event ID
// and the package clock.
func NewProfileRecord(eventID, userID string, a Answers) ProfileRecord {
	return ProfileRecord{
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: clock.Now().UTC(),
		Answers:   a,
		Profile:   ClassifyAnswers(a),
	}
}

// ClassifyAnswers normalizes and classifies in one step.
func ClassifyAnswers(a Answers) ConstitutionProfile {
	return Classify(Normalize(a), a.SymptomFocus, a)
}

// Classify derives the core code, sub-labels and meridians from the axes.
// It is total: unknown symptom values use the default priority ladder.
func Classify(axes NormalizedAxes, symptom SymptomFocus, a Answers) ConstitutionProfile {
	return ConstitutionProfile{
		Version:         ProfileVersion,
		CoreCode:        CoreCode(axes),
		SubLabels:       SubLabels(axes, symptom),
		PrimaryMeridian: PrimaryMeridian(a.MeridianTest),
		Axes:            axes,
		MixedPattern:    DetectMixedPattern(axes, symptom),
	}
}

// DetectMixedPattern flags a neutral-thermo, low-resilience profile whose
// focus is a head or mood symptom and which has some material imbalance.
func DetectMixedPattern(axes NormalizedAxes, symptom SymptomFocus) bool {
	if axes.Thermo != 0 || axes.Resilience != -1 {
		return false
	}
	switch symptom {
	case SymptomHeadache, SymptomDizziness, SymptomMood, SymptomSleep:
	default:
		return false
	}
	return axes.Qi != 0 || axes.Blood != 0 || axes.Fluid != 0
}

// CoreCode returns "<polarity>_<size>", e.g. "accel_large".
func CoreCode(axes NormalizedAxes) string {
	polarity := "steady"
	switch axes.Thermo {
	case -1:
		polarity = "brake"
	case 1:
		polarity = "accel"
	}

	size := "large"
	switch {
	case axes.Resilience == -1:
		size = "small"
	case axes.Qi != 0 || axes.Blood != 0 || axes.Fluid != 0:
		size = "standard"
	}
	return polarity + "_" + size
}

type materialAxis int

const (
	axisQi materialAxis = iota
	axisBlood
	axisFluid
)

var (
	defaultPriority = []materialAxis{axisQi, axisBlood, axisFluid}
	fluidFirst      = []materialAxis{axisFluid, axisQi, axisBlood}
	bloodFirst      = []materialAxis{axisBlood, axisQi, axisFluid}

	symptomPriority = map[SymptomFocus][]materialAxis{
		SymptomFatigue:      defaultPriority,
		SymptomHeadache:     defaultPriority,
		SymptomMood:         defaultPriority,
		SymptomDizziness:    fluidFirst,
		SymptomSwelling:     fluidFirst,
		SymptomSleep:        bloodFirst,
		SymptomNeckShoulder: bloodFirst,
		SymptomLowBackPain:  bloodFirst,
	}
)

func axisValue(axes NormalizedAxes, a materialAxis) int {
	switch a {
	case axisQi:
		return axes.Qi
	case axisBlood:
		return axes.Blood
	default:
		return axes.Fluid
	}
}

func axisLabel(a materialAxis, v int) SubLabel {
	switch a {
	case axisQi:
		if v < 0 {
			return SubQiDeficiency
		}
		return SubQiStagnation
	case axisBlood:
		if v < 0 {
			return SubBloodDeficiency
		}
		return SubBloodStasis
	default:
		if v < 0 {
			return SubFluidDeficiency
		}
		return SubFluidDamp
	}
}

// SubLabels picks up to two imbalance tags. Slot one follows the symptom's
// axis priority; slot two takes the next non-zero axis in qi, blood, fluid
// order. When every material axis is zero both slots come from fallback
// ladders instead.
func SubLabels(axes NormalizedAxes, symptom SymptomFocus) []SubLabel {
	priority, ok := symptomPriority[symptom]
	if !ok {
		priority = defaultPriority
	}

	labels := make([]SubLabel, 0, MaxSubLabels)
	first := materialAxis(-1)
	for _, a := range priority {
		if v := axisValue(axes, a); v != 0 {
			labels = append(labels, axisLabel(a, v))
			first = a
			break
		}
	}

	if first < 0 {
		labels = append(labels, primaryFallback(axes, symptom))
		if second, ok := secondaryFallback(axes, symptom, labels[0]); ok {
			labels = append(labels, second)
		}
		return labels
	}

	for _, a := range defaultPriority {
		if a == first {
			continue
		}
		if v := axisValue(axes, a); v != 0 {
			labels = append(labels, axisLabel(a, v))
			break
		}
	}

	if len(labels) > MaxSubLabels {
		labels = labels[:MaxSubLabels]
	}
	return labels
}

func primaryFallback(axes NormalizedAxes, symptom SymptomFocus) SubLabel {
	switch {
	case axes.Resilience == -1:
		return SubQiDeficiency
	case symptom == SymptomSwelling || symptom == SymptomDizziness:
		return SubFluidDamp
	case symptom == SymptomSleep:
		return SubBloodDeficiency
	case symptom == SymptomMood || symptom == SymptomHeadache:
		return SubQiStagnation
	default:
		return SubQiDeficiency
	}
}

// secondaryFallback returns the first candidate that differs from the label
// already chosen.
func secondaryFallback(axes NormalizedAxes, symptom SymptomFocus, have SubLabel) (SubLabel, bool) {
	var candidates []SubLabel
	switch axes.Thermo {
	case 1:
		candidates = append(candidates, SubFluidDeficiency)
	case -1:
		candidates = append(candidates, SubFluidDamp)
	}
	if symptom == SymptomSleep {
		candidates = append(candidates, SubBloodDeficiency)
	}
	for _, c := range candidates {
		if c != have {
			return c, true
		}
	}
	return "", false
}
