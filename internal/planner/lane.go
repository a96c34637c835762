package planner

import (
	"math"
	"sort"
)

// HazardRates are per-category miss probabilities for a landing lane.
type HazardRates struct {
	Water   float64 `json:"water"`
	Bunker  float64 `json:"bunker"`
	Rough   float64 `json:"rough"`
	OB      float64 `json:"ob"`
	Fairway float64 `json:"fairway"`
}

// Dispersion is the shot scatter model for lane scoring. A zero lateral
// sigma is derived from the total sigma.
type Dispersion struct {
	SigmaM        float64 `json:"sigma_m"`
	LateralSigmaM float64 `json:"lateralSigma_m,omitempty"`
}

// TargetLane is one candidate landing lane.
type TargetLane struct {
	OffsetM float64 `json:"offset_m"`
	CarryM  float64 `json:"carry_m"`
}

// StrategyBounds clamp the lane candidate grid.
type StrategyBounds struct {
	MinCarryM  *float64 `json:"minCarry_m,omitempty"`
	MaxCarryM  *float64 `json:"maxCarry_m,omitempty"`
	MaxOffsetM *float64 `json:"maxOffset_m,omitempty"`
}

// StrategyInput describes one lane-selection problem.
type StrategyInput struct {
	RawDistM        float64         `json:"rawDist_m"`
	PlaysLikeFactor float64         `json:"playsLikeFactor"`
	Hazard          HazardRates     `json:"hazard"`
	Dispersion      Dispersion      `json:"dispersion"`
	LaneWidthM      float64         `json:"laneWidth_m"`
	Profile         RiskProfile     `json:"profile"`
	Bounds          *StrategyBounds `json:"bounds,omitempty"`
	DangerSide      string          `json:"dangerSide,omitempty"`
}

// EVBreakdown decomposes a lane score into its signed components.
type EVBreakdown struct {
	Distance float64 `json:"distance"`
	Hazards  float64 `json:"hazards"`
	Fairway  float64 `json:"fairway"`
	Bias     float64 `json:"bias"`
}

// StrategyDecision is the chosen lane with its score.
type StrategyDecision struct {
	Profile     RiskProfile `json:"profile"`
	Recommended TargetLane  `json:"recommended"`
	EVScore     float64     `json:"evScore"`
	Breakdown   EVBreakdown `json:"breakdown"`
}

var strategyOffsetSteps = []float64{-12, -8, -4, 0, 4, 8, 12}
var strategyCarrySteps = []float64{-10, 0, 10}

func sanitizeFinite(v, fallback float64) float64 {
	if !isFinite(v) {
		return fallback
	}
	return v
}

func sanitizeDistance(v, fallback float64) float64 {
	numeric := sanitizeFinite(v, fallback)
	if numeric <= 0 {
		return fallback
	}
	return numeric
}

func normalizeDispersion(d Dispersion) Dispersion {
	sigma := sanitizeDistance(d.SigmaM, 12)
	lateral := sanitizeFinite(d.LateralSigmaM, 0)
	if lateral <= 0 {
		lateral = math.Max(4, sigma*0.55)
	}
	return Dispersion{SigmaM: sigma, LateralSigmaM: lateral}
}

func normalizeHazardRates(h HazardRates) HazardRates {
	return HazardRates{
		Water:   clamp01(h.Water),
		Bunker:  clamp01(h.Bunker),
		Rough:   clamp01(h.Rough),
		OB:      clamp01(h.OB),
		Fairway: clamp01(h.Fairway),
	}
}

func normalizeLaneWidth(v float64) float64 {
	numeric := sanitizeDistance(v, 20)
	if numeric <= 0 {
		return 20
	}
	return numeric
}

func resolveDangerSign(side string) float64 {
	switch side {
	case "left":
		return -1
	case "right":
		return 1
	}
	return 0
}

func clampBounds(v, min, max float64) float64 {
	if !isFinite(v) {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// dedupeValues collapses candidates that round to the same centimeter,
// preserving first-seen order, and never returns an empty slice.
func dedupeValues(values []float64) []float64 {
	seen := make(map[int64]struct{}, len(values))
	result := make([]float64, 0, len(values))
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		key := int64(math.Round(v * 100))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, v)
	}
	if len(result) == 0 {
		result = append(result, 0)
	}
	return result
}

func offsetCandidates(input StrategyInput) []float64 {
	maxOffset := math.NaN()
	if input.Bounds != nil && input.Bounds.MaxOffsetM != nil && isFinite(*input.Bounds.MaxOffsetM) {
		maxOffset = math.Abs(*input.Bounds.MaxOffsetM)
	}
	laneHalf := normalizeLaneWidth(input.LaneWidthM) / 2
	if !isFinite(maxOffset) || maxOffset <= 0 {
		maxOffset = laneHalf
	}
	values := make([]float64, 0, len(strategyOffsetSteps)+3)
	for _, step := range strategyOffsetSteps {
		values = append(values, clampBounds(step, -maxOffset, maxOffset))
	}
	values = append(values, -maxOffset, maxOffset, 0)
	out := dedupeValues(values)
	sort.Float64s(out)
	return out
}

func carryCandidates(baseCarry float64, bounds *StrategyBounds) []float64 {
	minCarry := 0.0
	if bounds != nil && bounds.MinCarryM != nil && isFinite(*bounds.MinCarryM) {
		minCarry = math.Max(0, *bounds.MinCarryM)
	}
	maxCarry := baseCarry + 30
	if bounds != nil && bounds.MaxCarryM != nil && isFinite(*bounds.MaxCarryM) && *bounds.MaxCarryM > 0 {
		maxCarry = *bounds.MaxCarryM
	}
	maxCarry = math.Max(minCarry, maxCarry)
	values := make([]float64, 0, len(strategyCarrySteps)+1)
	for _, step := range strategyCarrySteps {
		values = append(values, clampBounds(baseCarry+step, minCarry, maxCarry))
	}
	values = append(values, clampBounds(baseCarry, minCarry, maxCarry))
	out := dedupeValues(values)
	sort.Float64s(out)
	return out
}

// ScoreLaneEV scores one lane against the weights: a distance reward for
// carries near the plays-like target, hazard penalties, a fairway bonus, and
// a short-side bias penalty when the lane fails to favor the safe side.
func ScoreLaneEV(input StrategyInput, lane TargetLane, weights StrategyWeights) (float64, EVBreakdown) {
	hazards := normalizeHazardRates(input.Hazard)
	dispersion := normalizeDispersion(input.Dispersion)
	laneWidth := normalizeLaneWidth(input.LaneWidthM)
	baseRaw := sanitizeDistance(input.RawDistM, 0)
	factor := sanitizeDistance(input.PlaysLikeFactor, 1)
	if factor == 0 {
		factor = 1
	}
	targetCarry := sanitizeDistance(baseRaw*factor, baseRaw)

	carry := sanitizeDistance(lane.CarryM, targetCarry)
	offset := sanitizeFinite(lane.OffsetM, 0)

	closeness := 0.0
	if targetCarry > 0 {
		closeness = math.Max(0, 1-math.Abs(carry-targetCarry)/math.Max(targetCarry, 1))
	}
	distanceReward := weights.DistanceReward * targetCarry * closeness

	hazardPenalty := hazards.Water*weights.HazardWater +
		hazards.Bunker*weights.HazardBunker +
		hazards.Rough*weights.HazardRough +
		hazards.OB*weights.HazardOB
	fairwayBonus := hazards.Fairway * weights.FairwayBonus

	dangerSign := resolveDangerSign(input.DangerSide)
	fatSideBase := math.Max(0, weights.FatSideBiasM)
	laneHalf := laneWidth / 2
	hazardDirectional := clamp01(hazards.Water + hazards.OB)
	hazardBoost := laneHalf * hazardDirectional * (0.5 + hazardDirectional)
	fatSideTarget := math.Min(laneHalf, fatSideBase+hazardBoost)
	lateralSigma := sanitizeFinite(dispersion.LateralSigmaM, dispersion.SigmaM)
	biasPenalty := 0.0
	if dangerSign != 0 && fatSideTarget > 0 {
		offsetAway := -offset
		if dangerSign < 0 {
			offsetAway = offset
		}
		shortfall := fatSideTarget - offsetAway
		if shortfall > 0 {
			normalized := math.Min(shortfall/math.Max(fatSideTarget, 1), 1)
			dispersionFactor := 1 + math.Min(lateralSigma/math.Max(laneHalf, 1), 1.5)
			severityBoost := 1 + hazards.Water*6 + hazards.OB*3
			biasPenalty = normalized * hazardDirectional * dispersionFactor * severityBoost
		}
	}

	breakdown := EVBreakdown{
		Distance: distanceReward,
		Hazards:  -hazardPenalty,
		Fairway:  fairwayBonus,
		Bias:     -biasPenalty,
	}
	ev := distanceReward - hazardPenalty + fairwayBonus - biasPenalty
	if !isFinite(ev) {
		ev = math.Inf(-1)
	}
	return ev, breakdown
}

// ChooseStrategy enumerates the offset/carry lane grid for the input's risk
// profile and returns the highest-EV lane. Ties prefer smaller offsets, then
// carries closer to the plays-like target.
func ChooseStrategy(input StrategyInput) StrategyDecision {
	profile := NormalizeRiskProfile(input.Profile)
	return ChooseStrategyWeighted(input, StrategyDefaults[profile])
}

// ChooseStrategyWeighted runs the lane search with an explicit weight set,
// typically the profile defaults adjusted by learned suggestions.
func ChooseStrategyWeighted(input StrategyInput, weights StrategyWeights) StrategyDecision {
	profile := NormalizeRiskProfile(input.Profile)
	normalized := input
	normalized.Profile = profile
	normalized.Hazard = normalizeHazardRates(input.Hazard)
	normalized.Dispersion = normalizeDispersion(input.Dispersion)
	normalized.LaneWidthM = normalizeLaneWidth(input.LaneWidthM)
	normalized.RawDistM = sanitizeDistance(input.RawDistM, 0)
	normalized.PlaysLikeFactor = sanitizeDistance(input.PlaysLikeFactor, 1)
	if normalized.PlaysLikeFactor == 0 {
		normalized.PlaysLikeFactor = 1
	}

	baseCarry := sanitizeDistance(normalized.RawDistM*normalized.PlaysLikeFactor, normalized.RawDistM)
	targetCarry := baseCarry
	if targetCarry == 0 {
		targetCarry = normalized.RawDistM
	}

	offsets := offsetCandidates(normalized)
	carries := carryCandidates(baseCarry, normalized.Bounds)

	var bestLane *TargetLane
	bestScore := math.Inf(-1)
	var bestBreakdown EVBreakdown
	for _, offset := range offsets {
		for _, carry := range carries {
			lane := TargetLane{OffsetM: offset, CarryM: carry}
			ev, breakdown := ScoreLaneEV(normalized, lane, weights)
			if ev > bestScore+1e-6 {
				bestScore = ev
				laneCopy := lane
				bestLane = &laneCopy
				bestBreakdown = breakdown
				continue
			}
			if bestLane == nil || math.Abs(ev-bestScore) > 1e-6 {
				continue
			}
			currentOffset := math.Abs(lane.OffsetM)
			incumbentOffset := math.Abs(bestLane.OffsetM)
			if currentOffset < incumbentOffset-1e-3 {
				laneCopy := lane
				bestLane = &laneCopy
				bestBreakdown = breakdown
				continue
			}
			if math.Abs(currentOffset-incumbentOffset) <= 1e-3 {
				currentDiff := math.Abs(lane.CarryM - targetCarry)
				incumbentDiff := math.Abs(bestLane.CarryM - targetCarry)
				if currentDiff < incumbentDiff-1e-3 {
					laneCopy := lane
					bestLane = &laneCopy
					bestBreakdown = breakdown
				}
			}
		}
	}

	if bestLane == nil {
		fallback := TargetLane{OffsetM: 0, CarryM: targetCarry}
		ev, breakdown := ScoreLaneEV(normalized, fallback, weights)
		return StrategyDecision{Profile: profile, Recommended: fallback, EVScore: ev, Breakdown: breakdown}
	}
	return StrategyDecision{Profile: profile, Recommended: *bestLane, EVScore: bestScore, Breakdown: bestBreakdown}
}
