// Package playslike computes effective-distance corrections for ambient
// conditions and personalizes the correction coefficients from shot history.
package playslike

import "math"

// Default correction coefficients: fractional distance change per degree C,
// per 100 m of altitude, per m/s of headwind, and meters per meter of
// elevation change.
const (
	DefaultBetaPerC     = 0.0018
	DefaultGammaPer100m = 0.0065
	DefaultHeadPerMps   = 0.015
	DefaultSlopePerM    = 0.9

	DefaultCrossAimDegPerMps = 0.35
	DefaultCapPerComponent   = 0.15
	DefaultCapTotal          = 0.25

	refTempC = 20
	epsilon  = 1e-9
)

// PersonalCoefficients are the plays-like correction coefficients, either
// the defaults or a personalized fit.
type PersonalCoefficients struct {
	BetaPerC     float64 `json:"betaPerC"`
	GammaPer100m float64 `json:"gammaPer100m"`
	HeadPerMps   float64 `json:"head_per_mps"`
	SlopePerM    float64 `json:"slope_per_m"`
}

// DefaultCoefficients returns the untuned coefficient set.
func DefaultCoefficients() PersonalCoefficients {
	return PersonalCoefficients{
		BetaPerC:     DefaultBetaPerC,
		GammaPer100m: DefaultGammaPer100m,
		HeadPerMps:   DefaultHeadPerMps,
		SlopePerM:    DefaultSlopePerM,
	}
}

// WindObservation is the wind part of a wind/slope correction request.
// DirectionDegFrom is the bearing the wind blows from.
type WindObservation struct {
	SpeedMps         float64 `json:"speed_mps"`
	DirectionDegFrom float64 `json:"direction_deg_from"`
	TargetAzimuthDeg float64 `json:"targetAzimuth_deg"`
}

// SlopeObservation is the elevation change from ball to target.
type SlopeObservation struct {
	DeltaHeightM float64 `json:"deltaHeight_m"`
}

// WindSlopeInput is a wind/slope correction request. Coeff overrides
// individual coefficients; zero-valued fields keep the defaults.
type WindSlopeInput struct {
	BaseDistanceM float64
	Wind          *WindObservation
	Slope         *SlopeObservation
	Enable        bool
	Coeff         *WindSlopeCoeff
}

// WindSlopeCoeff overrides the wind/slope correction coefficients. Nil
// pointer fields keep the defaults.
type WindSlopeCoeff struct {
	HeadPerMps        *float64 `json:"head_per_mps,omitempty"`
	SlopePerM         *float64 `json:"slope_per_m,omitempty"`
	CrossAimDegPerMps *float64 `json:"cross_aim_deg_per_mps,omitempty"`
	CapPerComponent   *float64 `json:"cap_per_component,omitempty"`
	CapTotal          *float64 `json:"cap_total,omitempty"`
}

// WindSlopeDelta is the correction result. AimAdjustDeg is set only when a
// crosswind component exists.
type WindSlopeDelta struct {
	DeltaHeadM   float64  `json:"deltaHead_m"`
	DeltaSlopeM  float64  `json:"deltaSlope_m"`
	DeltaTotalM  float64  `json:"deltaTotal_m"`
	AimAdjustDeg *float64 `json:"aimAdjust_deg,omitempty"`
	Notes        []string `json:"notes,omitempty"`
}

func coefficient(override *float64, fallback float64) float64 {
	if override == nil || !isFinite(*override) {
		return fallback
	}
	return *override
}

func fraction(override *float64, fallback float64) float64 {
	if override == nil || !isFinite(*override) {
		return fallback
	}
	if *override <= 0 {
		return 0
	}
	return *override
}

// clampAbs limits a value's magnitude, preserving sign.
func clampAbs(v, limit float64) float64 {
	if !isFinite(v) {
		return 0
	}
	max := math.Max(0, limit)
	if max == 0 {
		return 0
	}
	if math.Abs(v) <= max {
		return v
	}
	if v < 0 {
		return -max
	}
	return max
}

// ComputeWindSlopeDelta computes the capped headwind and slope distance
// corrections plus an aim adjustment for crosswind. Each component is capped
// to a fraction of base distance; if the combined total still exceeds its
// cap, both components are rescaled uniformly. Every binding cap records a
// note.
func ComputeWindSlopeDelta(input WindSlopeInput) WindSlopeDelta {
	baseDistance := 0.0
	if isFinite(input.BaseDistanceM) && input.BaseDistanceM > 0 {
		baseDistance = input.BaseDistanceM
	}
	if !input.Enable || baseDistance == 0 {
		return WindSlopeDelta{}
	}

	headPerMps := DefaultHeadPerMps
	slopePerM := DefaultSlopePerM
	crossAimPerMps := DefaultCrossAimDegPerMps
	capPerComponentFraction := DefaultCapPerComponent
	capTotalFraction := DefaultCapTotal
	if input.Coeff != nil {
		headPerMps = coefficient(input.Coeff.HeadPerMps, DefaultHeadPerMps)
		slopePerM = coefficient(input.Coeff.SlopePerM, DefaultSlopePerM)
		crossAimPerMps = coefficient(input.Coeff.CrossAimDegPerMps, DefaultCrossAimDegPerMps)
		capPerComponentFraction = fraction(input.Coeff.CapPerComponent, DefaultCapPerComponent)
		capTotalFraction = fraction(input.Coeff.CapTotal, DefaultCapTotal)
	}
	capPerComponent := baseDistance * capPerComponentFraction
	capTotal := baseDistance * capTotalFraction

	var notes []string
	addNote := func(note string) {
		for _, existing := range notes {
			if existing == note {
				return
			}
		}
		notes = append(notes, note)
	}

	deltaHead := 0.0
	var aimAdjust *float64
	if wind := input.Wind; wind != nil && isFinite(wind.DirectionDegFrom) {
		speed := 0.0
		if isFinite(wind.SpeedMps) && wind.SpeedMps > 0 {
			speed = wind.SpeedMps
		}
		targetAzimuth := 0.0
		if isFinite(wind.TargetAzimuthDeg) {
			targetAzimuth = wind.TargetAzimuthDeg
		}
		if speed > 0 && headPerMps != 0 {
			thetaRad := math.Mod(wind.DirectionDegFrom-targetAzimuth, 360) * math.Pi / 180
			headComponent := speed * math.Cos(thetaRad)
			crossComponent := speed * math.Sin(thetaRad)
			rawHead := -baseDistance * headPerMps * headComponent
			capped := clampAbs(rawHead, capPerComponent)
			if capped != rawHead {
				addNote("head_component_capped")
			}
			deltaHead = capped
			rawAim := crossAimPerMps * crossComponent
			if isFinite(rawAim) && rawAim != 0 {
				aim := rawAim
				aimAdjust = &aim
			}
		}
	}

	deltaSlope := 0.0
	if slope := input.Slope; slope != nil && isFinite(slope.DeltaHeightM) && slopePerM != 0 {
		rawSlope := -slopePerM * slope.DeltaHeightM
		capped := clampAbs(rawSlope, capPerComponent)
		if capped != rawSlope {
			addNote("slope_component_capped")
		}
		deltaSlope = capped
	}

	deltaTotal := deltaHead + deltaSlope
	if capTotal == 0 {
		if deltaHead != 0 || deltaSlope != 0 {
			addNote("total_capped")
		}
		deltaHead, deltaSlope, deltaTotal = 0, 0, 0
	} else if math.Abs(deltaTotal) > capTotal {
		scale := capTotal / math.Max(math.Abs(deltaTotal), epsilon)
		deltaHead *= scale
		deltaSlope *= scale
		deltaTotal = deltaHead + deltaSlope
		addNote("total_capped")
	}

	return WindSlopeDelta{
		DeltaHeadM:   normalizeZero(deltaHead),
		DeltaSlopeM:  normalizeZero(deltaSlope),
		DeltaTotalM:  normalizeZero(deltaTotal),
		AimAdjustDeg: aimAdjust,
		Notes:        notes,
	}
}

// normalizeZero folds negative zero into zero so serialized output is stable.
func normalizeZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
