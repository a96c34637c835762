// Package mc contains the two deterministic Monte Carlo engines behind the
// shot planner: an aggregate-statistics engine used for candidate refinement
// and reporting (Run), and a lighter candidate-scoring engine (RunSim).
//
// Both engines share a seeding discipline: unless an explicit seed is given,
// a 32-bit seed is derived from the numeric inputs, and the same inputs
// always produce bit-identical output. Callers rely on this for reproducible
// plans and for regression tests.
package mc

import (
	"fmt"
	"math"
	"sort"

	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/risk"
)

const (
	minSamples     = 64
	maxSamples     = 20000
	defaultSamples = 2000

	defaultHazardPenalty = 1.0
	defaultSuccessWeight = 0.85
	defaultDistWeight    = 0.0125

	// Reasons below this hit rate are noise and are not reported.
	minReasonRate = 0.001
)

// Polygon is a hazard area in the aim frame with an optional penalty weight.
type Polygon struct {
	ID      string
	Label   string
	Rings   [][]geom.Point
	Penalty *float64
}

// Target is a success polygon, optionally ordered by priority and tagged
// with a green section.
type Target struct {
	Polygon
	Section  string
	Priority *float64
}

// Wind carries the crosswind and headwind components in m/s.
type Wind struct {
	Cross float64
	Head  float64
}

// Args are the aggregate engine inputs.
type Args struct {
	Samples       int
	Seed          *uint32
	RangeM        float64
	AimOffsetM    float64
	SigmaLongM    float64
	SigmaLatM     float64
	Wind          Wind
	Hazards       []Polygon
	GreenTargets  []Target
	Pin           *geom.Point
	HazardPenalty *float64
	SuccessWeight *float64
	DistWeight    *float64
}

// ReasonKind classifies a qualitative simulation reason.
type ReasonKind string

const (
	ReasonHazard     ReasonKind = "hazard"
	ReasonWind       ReasonKind = "wind"
	ReasonDispersion ReasonKind = "dispersion"
	ReasonTarget     ReasonKind = "target"
)

// Reason is one ranked qualitative explanation of the simulated outcome.
type Reason struct {
	Kind      ReasonKind `json:"kind"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Direction string     `json:"direction,omitempty"`
	FeatureID string     `json:"featureId,omitempty"`
}

// Result is the aggregate simulation output. For identical Args (including
// seed) the Result is bit-identical across calls.
type Result struct {
	Samples               int                `json:"samples"`
	HazardRate            float64            `json:"hazardRate"`
	SuccessRate           float64            `json:"successRate"`
	ExpectedDistanceToPin float64            `json:"expectedDistanceToPin"`
	ExpectedLatM          float64            `json:"expectedLat_m"`
	ExpectedLongM         float64            `json:"expectedLong_m"`
	ExpectedLatMissM      float64            `json:"expectedLatMiss_m"`
	ExpectedLongMissM     float64            `json:"expectedLongMiss_m"`
	PenaltyMean           float64            `json:"penaltyMean"`
	EV                    float64            `json:"ev"`
	DriftLatM             float64            `json:"driftLat_m"`
	DriftLongM            float64            `json:"driftLong_m"`
	Reasons               []Reason           `json:"reasons"`
	HazardBreakdown       map[string]int     `json:"hazardBreakdown"`
	TargetBreakdown       map[string]int     `json:"targetBreakdown"`
}

func normalizeSampleCount(requested, fallback, min, max int) int {
	if requested <= 0 {
		return fallback
	}
	if requested < min {
		return min
	}
	if requested > max {
		return max
	}
	return requested
}

func deriveSeed(values ...float64) uint32 {
	mixer := newSeedMixer()
	for _, v := range values {
		mixer.mix(v)
	}
	return mixer.value()
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	if v := sanitize(v); v > 0 {
		return v
	}
	return 0
}

func floatOr(ptr *float64, fallback float64) float64 {
	if ptr != nil && !math.IsNaN(*ptr) && !math.IsInf(*ptr, 0) {
		return *ptr
	}
	return fallback
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

func hazardKey(p *Polygon) string {
	if p.ID != "" {
		return p.ID
	}
	if p.Label != "" {
		return p.Label
	}
	return "hazard"
}

func targetKey(t *Target) string {
	if t.ID != "" {
		return t.ID
	}
	if t.Section != "" {
		return t.Section
	}
	if t.Label != "" {
		return t.Label
	}
	return "target"
}

// sortTargets orders explicit success targets by priority, then section,
// then id, so first-matching-target-wins is deterministic.
func sortTargets(targets []Target) []Target {
	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi := math.Inf(1)
		if sorted[i].Priority != nil {
			pi = *sorted[i].Priority
		}
		pj := math.Inf(1)
		if sorted[j].Priority != nil {
			pj = *sorted[j].Priority
		}
		if pi != pj {
			return pi < pj
		}
		if sorted[i].Section != sorted[j].Section {
			return sorted[i].Section < sorted[j].Section
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func centroidX(rings [][]geom.Point) float64 {
	sum := 0.0
	count := 0
	for _, ring := range rings {
		for _, p := range ring {
			if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
				continue
			}
			sum += p.X
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Run executes the aggregate Monte Carlo engine.
func Run(args Args) Result {
	samples := normalizeSampleCount(args.Samples, defaultSamples, minSamples, maxSamples)

	rangeM := sanitize(args.RangeM)
	aimOffset := sanitize(args.AimOffsetM)
	sigmaLong := nonNegative(args.SigmaLongM)
	sigmaLat := nonNegative(args.SigmaLatM)
	windCross := sanitize(args.Wind.Cross)
	windHead := sanitize(args.Wind.Head)

	var seed uint32
	if args.Seed != nil {
		seed = *args.Seed
	} else {
		mixer := newSeedMixer()
		mixer.mix(rangeM)
		mixer.mix(aimOffset)
		mixer.mix(sigmaLong)
		mixer.mix(sigmaLat)
		if windCross != 0 {
			mixer.mix(windCross)
		}
		if windHead != 0 {
			mixer.mix(windHead)
		}
		seed = mixer.value()
	}
	if seed == 0 {
		seed = 1
	}
	gauss := newGaussian(newRNG(seed))

	pin := geom.Point{X: 0, Y: rangeM}
	if args.Pin != nil {
		pin = *args.Pin
	}
	hazardPenaltyBase := floatOr(args.HazardPenalty, defaultHazardPenalty)
	successWeight := floatOr(args.SuccessWeight, defaultSuccessWeight)
	distWeight := floatOr(args.DistWeight, defaultDistWeight)

	flightRange := rangeM
	if flightRange == 0 {
		flightRange = math.Max(1, sigmaLong*6)
	}
	flightTime := risk.EstimateFlightTime(flightRange)
	crossDrift := risk.LateralWindOffset(windCross, flightTime)
	headDrift := windHead * flightTime * risk.HeadwindGain

	targets := sortTargets(args.GreenTargets)

	hazardHits := 0
	successHits := 0
	penaltySum := 0.0
	latSum := 0.0
	longSum := 0.0
	latMissSum := 0.0
	longMissSum := 0.0
	distanceSum := 0.0
	hazardBreakdown := make(map[string]int)
	targetBreakdown := make(map[string]int)

	for i := 0; i < samples; i++ {
		longNoise := gauss.next() * sigmaLong
		latNoise := gauss.next() * sigmaLat
		point := geom.Point{
			X: aimOffset + crossDrift + latNoise,
			Y: rangeM + longNoise - headDrift,
		}

		samplePenalty := 0.0
		hazardHit := false
		for h := range args.Hazards {
			hazard := &args.Hazards[h]
			if len(hazard.Rings) == 0 {
				continue
			}
			if geom.PolygonContains(point, hazard.Rings) {
				hazardHit = true
				samplePenalty += floatOr(hazard.Penalty, hazardPenaltyBase)
				hazardBreakdown[hazardKey(hazard)]++
			}
		}
		if hazardHit {
			hazardHits++
		}
		penaltySum += samplePenalty

		targetHit := false
		for t := range targets {
			target := &targets[t]
			if len(target.Rings) == 0 {
				continue
			}
			if geom.PolygonContains(point, target.Rings) {
				successHits++
				targetHit = true
				targetBreakdown[targetKey(target)]++
				break
			}
		}
		if !targetHit && len(targets) == 0 {
			// Without explicit targets, a center-line corridor of half-width
			// max(4, sigmaLat) stands in for the green.
			withinDefault := math.Abs(point.X-pin.X) <= math.Max(4, sigmaLat) && point.Y >= rangeM-sigmaLong
			if withinDefault {
				successHits++
				targetBreakdown["default"]++
			}
		}

		latSum += point.X
		longSum += point.Y
		latMissSum += point.X - pin.X
		longMissSum += point.Y - pin.Y
		distanceSum += math.Hypot(point.X-pin.X, point.Y-pin.Y)
	}

	n := float64(samples)
	result := Result{
		Samples:               samples,
		HazardRate:            clamp01(float64(hazardHits) / n),
		SuccessRate:           clamp01(float64(successHits) / n),
		ExpectedDistanceToPin: distanceSum / n,
		ExpectedLatM:          latSum / n,
		ExpectedLongM:         longSum / n,
		ExpectedLatMissM:      latMissSum / n,
		ExpectedLongMissM:     longMissSum / n,
		PenaltyMean:           penaltySum / n,
		DriftLatM:             aimOffset + crossDrift,
		DriftLongM:            rangeM - headDrift,
		HazardBreakdown:       hazardBreakdown,
		TargetBreakdown:       targetBreakdown,
	}
	result.EV = -result.PenaltyMean + successWeight*result.SuccessRate - distWeight*result.ExpectedDistanceToPin
	result.Reasons = buildReasons(args.Hazards, hazardBreakdown, samples, windCross, result.DriftLatM, sigmaLat)
	return result
}

func buildReasons(
	hazards []Polygon,
	hazardBreakdown map[string]int,
	samples int,
	windCross, deterministicLat, sigmaLat float64,
) []Reason {
	reasons := make([]Reason, 0, len(hazards)+3)

	for h := range hazards {
		hazard := &hazards[h]
		hits := hazardBreakdown[hazardKey(hazard)]
		if hits == 0 {
			continue
		}
		rate := float64(hits) / float64(samples)
		if rate < minReasonRate {
			continue
		}
		cx := centroidX(hazard.Rings)
		direction := "center"
		if cx > 1 {
			direction = "right"
		} else if cx < -1 {
			direction = "left"
		}
		reasons = append(reasons, Reason{
			Kind:      ReasonHazard,
			Label:     fmt.Sprintf("Hazard %s %.0f%%", direction, rate*100),
			Value:     rate,
			Direction: direction,
			FeatureID: hazardKey(hazard),
		})
	}

	if math.Abs(windCross) >= 1 {
		reasons = append(reasons, Reason{
			Kind:  ReasonWind,
			Label: fmt.Sprintf("Crosswind %.1f m/s", windCross),
			Value: clamp01(math.Min(math.Abs(windCross)/12, 1)),
		})
	}

	if math.Abs(deterministicLat) > math.Max(6, sigmaLat*0.9) {
		reasons = append(reasons, Reason{
			Kind:  ReasonTarget,
			Label: fmt.Sprintf("Aim drift %.1f m", deterministicLat),
			Value: clamp01(math.Abs(deterministicLat) / 25),
		})
	}

	if sigmaLat >= 6 {
		reasons = append(reasons, Reason{
			Kind:  ReasonDispersion,
			Label: fmt.Sprintf("σ_lat %.1f m", sigmaLat),
			Value: clamp01(math.Min((sigmaLat-5)/6, 1)),
		})
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].Value > reasons[j].Value
	})
	return reasons
}
