package domain

// Static display text. The maps are never written after init.

var coreLabels = map[string]string{
	"brake_small":     "Cool-running, low reserve",
	"brake_standard":  "Cool-running, moderate reserve",
	"brake_large":     "Cool-running, ample reserve",
	"steady_small":    "Even-running, low reserve",
	"steady_standard": "Even-running, moderate reserve",
	"steady_large":    "Even-running, ample reserve",
	"accel_small":     "Warm-running, low reserve",
	"accel_standard":  "Warm-running, moderate reserve",
	"accel_large":     "Warm-running, ample reserve",
}

var subLabelText = map[SubLabel]string{
	SubQiStagnation:    "energy gets stuck",
	SubQiDeficiency:    "energy runs low",
	SubBloodDeficiency: "nourishment runs thin",
	SubBloodStasis:     "circulation gets sluggish",
	SubFluidDamp:       "fluids pool easily",
	SubFluidDeficiency: "fluids run dry",
}

var meridianLabels = map[Meridian]string{
	MeridianFront: "front of the body",
	MeridianBack:  "back of the body",
	MeridianSide:  "sides of the body",
	MeridianInner: "inner legs and torso",
	MeridianArm:   "arms and chest",
}

var factorLabels = map[Factor]string{
	FactorWind: "rapid weather change",
	FactorCold: "cold",
	FactorHeat: "heat",
	FactorDamp: "dampness",
	FactorDry:  "dry air",
}

var levelLabels = map[Level]string{
	LevelStable:  "stable",
	LevelCaution: "caution",
	LevelAlert:   "alert",
}

// CoreLabel returns the display text for a core code, or the code itself.
func CoreLabel(code string) string {
	if s, ok := coreLabels[code]; ok {
		return s
	}
	return code
}

func SubLabelText(l SubLabel) string {
	if s, ok := subLabelText[l]; ok {
		return s
	}
	return string(l)
}

func MeridianLabel(m Meridian) string {
	if s, ok := meridianLabels[m]; ok {
		return s
	}
	return string(m)
}

func FactorLabel(f Factor) string {
	if s, ok := factorLabels[f]; ok {
		return s
	}
	return string(f)
}

func LevelLabel(l Level) string {
	if s, ok := levelLabels[l]; ok {
		return s
	}
	return "unknown"
}
