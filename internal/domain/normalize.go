package domain

// NormalizedAxes are the signed tri-state axes derived from Answers.
// Qi, Blood, Fluid and Thermo are in {-1, 0, +1}. Resilience is a bucket in
// {-1, +1}; it is 0 only on profiles missing the field.
type NormalizedAxes struct {
	Qi         int `json:"qi"`
	Blood      int `json:"blood"`
	Fluid      int `json:"fluid"`
	Thermo     int `json:"thermo"`
	Resilience int `json:"resilience"`
}

// Normalize maps validated answers onto the five axes. Values outside an
// enum fall back to the neutral mapping for that field.
func Normalize(a Answers) NormalizedAxes {
	return NormalizedAxes{
		Qi:         qiAxis(a.QiState),
		Blood:      bloodAxis(a.BloodState),
		Fluid:      fluidAxis(a.FluidState),
		Thermo:     thermoAxis(a.ColdHeat),
		Resilience: resilienceBucket(a.Resilience),
	}
}

func thermoAxis(v ColdHeat) int {
	switch v {
	case ColdHeatCold:
		return -1
	case ColdHeatHeat:
		return 1
	default:
		return 0
	}
}

// resilienceBucket has no neutral: medium and high both count as recovering.
func resilienceBucket(v Resilience) int {
	if v == ResilienceLow {
		return -1
	}
	return 1
}

func qiAxis(v QiState) int {
	switch v {
	case QiDeficiency:
		return -1
	case QiStagnation:
		return 1
	default:
		return 0
	}
}

func bloodAxis(v BloodState) int {
	switch v {
	case BloodDeficiency:
		return -1
	case BloodStasis:
		return 1
	default:
		return 0
	}
}

func fluidAxis(v FluidState) int {
	switch v {
	case FluidDeficiency:
		return -1
	case FluidDamp:
		return 1
	default:
		return 0
	}
}

// PrimaryMeridian maps the motion-test answer to its body line; anything
// other than A-D is treated as E.
func PrimaryMeridian(t MeridianTest) Meridian {
	switch t {
	case MeridianTestA:
		return MeridianFront
	case MeridianTestB:
		return MeridianBack
	case MeridianTestC:
		return MeridianSide
	case MeridianTestD:
		return MeridianInner
	default:
		return MeridianArm
	}
}
