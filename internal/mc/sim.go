package mc

import (
	"math"

	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/risk"
)

const (
	simMinSamples     = 32
	simMaxSamples     = 5000
	simDefaultSamples = 800
)

// SimFeatureKind classifies a feature handed to the candidate-scoring engine.
type SimFeatureKind string

const (
	SimFairway SimFeatureKind = "fairway"
	SimGreen   SimFeatureKind = "green"
	SimHazard  SimFeatureKind = "hazard"
	SimPath    SimFeatureKind = "path"
)

// SimFeature is a polygon (fairway/green/hazard) or polyline (path) in the
// aim frame.
type SimFeature struct {
	Kind  SimFeatureKind
	Rings [][]geom.Point
	Line  []geom.Point
}

// SimOpts configure one candidate-scoring simulation.
type SimOpts struct {
	Samples      int
	Seed         *uint32
	WindCrossMps float64
	WindHeadMps  float64
	LongSigmaM   float64
	LatSigmaM    float64
	RangeM       float64
	AimDeg       float64
	Features     []SimFeature
}

// SimOut summarizes a candidate-scoring run. PGreen is nil when the feature
// set carries no green polygons.
type SimOut struct {
	PFairway     float64  `json:"pFairway"`
	PHazard      float64  `json:"pHazard"`
	PGreen       *float64 `json:"pGreen,omitempty"`
	ExpLongMissM float64  `json:"expLongMiss_m"`
	ExpLatMissM  float64  `json:"expLatMiss_m"`
	ScoreProxy   float64  `json:"scoreProxy"`
}

func filterPolygons(features []SimFeature, kind SimFeatureKind) [][][]geom.Point {
	var polygons [][][]geom.Point
	for i := range features {
		if features[i].Kind == kind && len(features[i].Rings) > 0 {
			polygons = append(polygons, features[i].Rings)
		}
	}
	return polygons
}

func anyContains(polygons [][][]geom.Point, p geom.Point) bool {
	for _, rings := range polygons {
		if geom.PolygonContains(p, rings) {
			return true
		}
	}
	return false
}

// RunSim executes the candidate-scoring Monte Carlo engine. Like Run it is a
// pure function of its inputs: identical opts produce bit-identical output.
func RunSim(opts SimOpts) SimOut {
	samples := normalizeSampleCount(opts.Samples, simDefaultSamples, simMinSamples, simMaxSamples)

	longSigma := nonNegative(opts.LongSigmaM)
	latSigma := nonNegative(opts.LatSigmaM)
	rangeM := sanitize(opts.RangeM)
	aimDeg := sanitize(opts.AimDeg)
	windCross := sanitize(opts.WindCrossMps)
	windHead := sanitize(opts.WindHeadMps)

	var seed uint32
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = deriveSeed(rangeM, aimDeg, longSigma, latSigma, windCross, windHead)
	}
	gauss := newGaussian(newRNG(seed))

	flightRange := rangeM
	if flightRange == 0 {
		flightRange = math.Max(1, longSigma*6)
	}
	flightTime := risk.EstimateFlightTime(flightRange)
	crossDrift := risk.LateralWindOffset(windCross, flightTime)
	headDrift := windHead * flightTime * risk.HeadwindGain
	aimOffset := math.Tan(aimDeg*math.Pi/180) * rangeM

	fairways := filterPolygons(opts.Features, SimFairway)
	greens := filterPolygons(opts.Features, SimGreen)
	hazards := filterPolygons(opts.Features, SimHazard)

	sumLongMiss := 0.0
	sumLatMiss := 0.0
	fairwayHits := 0
	hazardHits := 0
	greenHits := 0

	for i := 0; i < samples; i++ {
		longError := gauss.next()*longSigma - headDrift
		latError := gauss.next() * latSigma
		point := geom.Point{
			X: aimOffset + crossDrift + latError,
			Y: rangeM + longError,
		}

		if len(hazards) > 0 && anyContains(hazards, point) {
			hazardHits++
		}
		if len(fairways) > 0 && anyContains(fairways, point) {
			fairwayHits++
		}
		if len(greens) > 0 && anyContains(greens, point) {
			greenHits++
		}

		sumLongMiss += point.Y - rangeM
		sumLatMiss += point.X
	}

	n := float64(samples)
	out := SimOut{
		ExpLongMissM: sumLongMiss / n,
		ExpLatMissM:  sumLatMiss / n,
	}
	if len(fairways) > 0 {
		out.PFairway = clamp01(float64(fairwayHits) / n)
	}
	if len(hazards) > 0 {
		out.PHazard = clamp01(float64(hazardHits) / n)
	}
	if len(greens) > 0 {
		pGreen := clamp01(float64(greenHits) / n)
		out.PGreen = &pGreen
	}

	denom := math.Max(1, math.Abs(rangeM))
	out.ScoreProxy = clamp01(
		2*out.PHazard +
			0.6*(1-out.PFairway) +
			0.2*(math.Abs(out.ExpLongMissM)/denom) +
			0.2*(math.Abs(out.ExpLatMissM)/denom))
	return out
}
