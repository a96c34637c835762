package planner

import (
	"math"
	"sort"

	"github.com/stitts-dev/caddie-engine/internal/mc"
)

// oppositeAimThreshold is the minimum lateral offset that counts as aiming
// away from a hazard side.
const oppositeAimThreshold = 0.5

// mcCandidate is the view the hazard-aware winner adjustment needs of a
// simulated candidate.
type mcCandidate interface {
	comparable
	aimOffsetM() float64
	mcResult() *mc.Result
	evScore() (float64, bool)
}

func hazardDirection(result *mc.Result) string {
	if result == nil {
		return ""
	}
	for _, reason := range result.Reasons {
		if reason.Kind != mc.ReasonHazard {
			continue
		}
		if reason.Direction == "left" || reason.Direction == "right" {
			return reason.Direction
		}
	}
	return ""
}

func aimOpposesHazard(offsetM float64, direction string) bool {
	if !isFinite(offsetM) {
		return false
	}
	if direction == "right" {
		return offsetM <= -oppositeAimThreshold
	}
	return offsetM >= oppositeAimThreshold
}

// adjustCandidateForHazard replaces the EV winner with a near-EV candidate
// that aims away from the dominant hazard side, when one exists whose
// simulated hazard rate is materially lower and within the gate. The EV a
// swap may give up is bounded per risk mode.
func adjustCandidateForHazard[T mcCandidate](pool []T, best T, riskGate float64, mode RiskMode) T {
	if len(pool) == 0 {
		return best
	}
	bestMc := best.mcResult()
	if bestMc == nil {
		return best
	}
	direction := hazardDirection(bestMc)
	if direction == "" {
		// Fall back to the offset of the safest simulated candidate.
		safestHazard := math.Inf(1)
		safestOffset := math.NaN()
		for _, candidate := range pool {
			result := candidate.mcResult()
			if result == nil || !isFinite(result.HazardRate) {
				continue
			}
			if result.HazardRate < safestHazard {
				safestHazard = result.HazardRate
				safestOffset = candidate.aimOffsetM()
			}
		}
		if isFinite(safestOffset) {
			if safestOffset <= -oppositeAimThreshold {
				direction = "right"
			} else if safestOffset >= oppositeAimThreshold {
				direction = "left"
			}
		}
	}
	if direction == "" {
		return best
	}
	if aimOpposesHazard(best.aimOffsetM(), direction) {
		return best
	}
	bestHazard := bestMc.HazardRate
	if !isFinite(bestHazard) {
		return best
	}
	minHazard := math.Inf(1)
	seen := false
	for _, candidate := range pool {
		result := candidate.mcResult()
		if result == nil || !isFinite(result.HazardRate) {
			continue
		}
		seen = true
		if result.HazardRate < minHazard {
			minHazard = result.HazardRate
		}
	}
	if !seen {
		return best
	}
	improvement := math.Max(0.0005, riskGate*0.005)
	if bestHazard <= minHazard+improvement {
		return best
	}
	evBest, ok := best.evScore()
	if !ok {
		return best
	}
	tolerance, found := evToleranceByMode[mode]
	if !found {
		tolerance = 0.25
	}
	var options []T
	for _, candidate := range pool {
		if candidate == best {
			continue
		}
		result := candidate.mcResult()
		if result == nil {
			continue
		}
		hazard := result.HazardRate
		if !isFinite(hazard) || hazard > riskGate+1e-6 {
			continue
		}
		if !aimOpposesHazard(candidate.aimOffsetM(), direction) {
			continue
		}
		if bestHazard-hazard <= improvement {
			continue
		}
		ev, evOK := candidate.evScore()
		if !evOK || ev < evBest-tolerance {
			continue
		}
		options = append(options, candidate)
	}
	if len(options) == 0 {
		return best
	}
	sort.SliceStable(options, func(i, j int) bool {
		hazardA := options[i].mcResult().HazardRate
		hazardB := options[j].mcResult().HazardRate
		if math.Abs(hazardA-hazardB) > 1e-3 {
			return hazardA < hazardB
		}
		offA := math.Abs(options[i].aimOffsetM())
		offB := math.Abs(options[j].aimOffsetM())
		switch mode {
		case RiskSafe:
			// A safe player prefers the bigger bail-out.
			if math.Abs(offA-offB) > 1e-3 {
				return offA > offB
			}
		case RiskAggressive:
			if math.Abs(offA-offB) > 1e-3 {
				return offA < offB
			}
		}
		evA, okA := options[i].evScore()
		evB, okB := options[j].evScore()
		if okA && okB && evA != evB {
			return evA > evB
		}
		return offA < offB
	})
	return options[0]
}
