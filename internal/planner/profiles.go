// Package planner implements the shot-planning candidate search: tee and
// approach planners that enumerate aim/distance candidates, score them with a
// closed-form risk heuristic, optionally refine the leaders through the
// Monte Carlo engine, and select a winner under ordered tie-break rules.
package planner

// RiskMode is the caller-facing risk posture for a single plan request.
type RiskMode string

const (
	RiskSafe       RiskMode = "safe"
	RiskNormal     RiskMode = "normal"
	RiskAggressive RiskMode = "aggressive"
)

// NormalizeRiskMode maps unknown values to RiskNormal.
func NormalizeRiskMode(mode RiskMode) RiskMode {
	switch mode {
	case RiskSafe, RiskNormal, RiskAggressive:
		return mode
	}
	return RiskNormal
}

// riskMultiplier widens or tightens the dispersion ellipse per mode: safe
// planning assumes a worse strike than the player's true sigmas.
var riskMultiplier = map[RiskMode]float64{
	RiskSafe:       1.2,
	RiskNormal:     1.0,
	RiskAggressive: 0.8,
}

// fatBiasModeScale scales the approach fat-side bias per mode.
var fatBiasModeScale = map[RiskMode]float64{
	RiskSafe:       1.2,
	RiskNormal:     1.0,
	RiskAggressive: 0.7,
}

// evToleranceByMode is how much simulated EV the hazard-aware winner
// adjustment may give up to aim away from the danger side.
var evToleranceByMode = map[RiskMode]float64{
	RiskSafe:       0.65,
	RiskNormal:     0.32,
	RiskAggressive: 0.36,
}

// RiskProfile is the named posture used by the lane strategy scorer and the
// learning aggregator.
type RiskProfile string

const (
	ProfileConservative RiskProfile = "conservative"
	ProfileNeutral      RiskProfile = "neutral"
	ProfileAggressive   RiskProfile = "aggressive"
)

// NormalizeRiskProfile maps unknown values to ProfileNeutral.
func NormalizeRiskProfile(p RiskProfile) RiskProfile {
	switch p {
	case ProfileConservative, ProfileNeutral, ProfileAggressive:
		return p
	}
	return ProfileNeutral
}

// StrategyWeights are the lane-EV scoring weights for one risk profile.
// HazardDelta and DistanceDelta allow the learning aggregator's bounded
// adjustments to shift a profile without replacing it.
type StrategyWeights struct {
	DistanceReward float64 `json:"distanceReward"`
	HazardWater    float64 `json:"hazardWater"`
	HazardBunker   float64 `json:"hazardBunker"`
	HazardRough    float64 `json:"hazardRough"`
	HazardOB       float64 `json:"hazardOB"`
	FairwayBonus   float64 `json:"fairwayBonus"`
	FatSideBiasM   float64 `json:"fatSideBias_m"`
}

// StrategyDefaults are the hand-tuned per-profile weight tables.
var StrategyDefaults = map[RiskProfile]StrategyWeights{
	ProfileConservative: {
		DistanceReward: 0.8,
		HazardWater:    5.0,
		HazardBunker:   2.0,
		HazardRough:    1.0,
		HazardOB:       6.0,
		FairwayBonus:   1.2,
		FatSideBiasM:   3.0,
	},
	ProfileNeutral: {
		DistanceReward: 1.0,
		HazardWater:    4.0,
		HazardBunker:   1.5,
		HazardRough:    0.8,
		HazardOB:       5.0,
		FairwayBonus:   1.0,
		FatSideBiasM:   2.0,
	},
	ProfileAggressive: {
		DistanceReward: 1.25,
		HazardWater:    3.0,
		HazardBunker:   1.0,
		HazardRough:    0.5,
		HazardOB:       4.0,
		FairwayBonus:   0.8,
		FatSideBiasM:   1.0,
	},
}

// Tuning gathers the empirical search constants. They are tuning knobs, not
// physical invariants, so they live in configuration; DefaultTuning preserves
// the production values.
type Tuning struct {
	// RiskGate is the maximum acceptable simulated hazard rate when the
	// Monte Carlo refinement filters candidates.
	RiskGate float64

	// AimOffsetsTee and AimOffsetsApproach are the lateral candidate offsets
	// in meters.
	AimOffsetsTee      []float64
	AimOffsetsApproach []float64

	// StepMeters is the tee-shot distance increment; MinDistanceM the
	// shortest candidate carry considered.
	StepMeters   float64
	MinDistanceM float64

	// MCTopTee / MCTopApproach bound how many leading candidates the Monte
	// Carlo refinement re-scores.
	MCTopTee      int
	MCTopApproach int

	// FairwayMissScale scales the fraction of ellipse samples outside every
	// fairway polygon; FairwayMissFlat applies when no fairway exists.
	// GreenMissScale is the approach equivalent against the green rings.
	FairwayMissScale float64
	FairwayMissFlat  float64
	GreenMissScale   float64

	// Fat-side bias formula constants.
	FatBiasMinSigmaLat   float64
	FatBiasProbeMinM     float64
	FatBiasProbeMaxM     float64
	FatBiasProbeScale    float64
	FatBiasPressureGain  float64
	FatBiasSigmaGain     float64
	FatBiasMaxM          float64
	FatBiasMinMagnitudeM float64
}

// DefaultTuning returns the production search constants.
func DefaultTuning() Tuning {
	return Tuning{
		RiskGate:           0.42,
		AimOffsetsTee:      []float64{-25, -15, -8, 0, 8, 15, 25},
		AimOffsetsApproach: []float64{-12, -8, -4, 0, 4, 8, 12},
		StepMeters:         10,
		MinDistanceM:       30,
		MCTopTee:           5,
		MCTopApproach:      3,
		FairwayMissScale:   0.6,
		FairwayMissFlat:    0.15,
		GreenMissScale:     0.5,

		FatBiasMinSigmaLat:   3.5,
		FatBiasProbeMinM:     3.5,
		FatBiasProbeMaxM:     8,
		FatBiasProbeScale:    0.9,
		FatBiasPressureGain:  4.2,
		FatBiasSigmaGain:     0.35,
		FatBiasMaxM:          5,
		FatBiasMinMagnitudeM: 0.6,
	}
}
