// Package risk estimates how much of a shot's landing dispersion overlaps
// classified course hazards, and the deterministic lateral drift the wind
// adds over a ball flight.
package risk

import (
	"math"

	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
)

// CrosswindGain converts crosswind speed times flight time into lateral
// drift meters.
const CrosswindGain = 0.12

// HeadwindGain converts headwind speed times flight time into lost carry
// meters.
const HeadwindGain = 0.08

// OverlapArgs describe one dispersion ellipse against a set of risk features.
type OverlapArgs struct {
	Center      geom.Point
	LongRadiusM float64
	LatRadiusM  float64
	Features    []course.RiskFeature
}

// EllipseOverlapRisk samples 36 equally spaced points on the ellipse boundary
// and averages, per sample, the maximum penalty over all covering features.
// Polygon features cover a sample by containment; polyline features cover it
// within their width, with penalty falling off linearly from full at the line
// to zero at the width. The result is clamped to [0,1] and is 0 for empty
// feature sets or degenerate radii.
func EllipseOverlapRisk(args OverlapArgs) float64 {
	if len(args.Features) == 0 {
		return 0
	}
	longRadius := sanitizeRadius(args.LongRadiusM)
	latRadius := sanitizeRadius(args.LatRadiusM)
	if longRadius == 0 && latRadius == 0 {
		return 0
	}
	samples := geom.SampleEllipse(args.Center, longRadius, latRadius)
	total := 0.0
	for _, sample := range samples {
		total += samplePenalty(sample, args.Features)
	}
	return clamp01(total / float64(len(samples)))
}

func samplePenalty(p geom.Point, features []course.RiskFeature) float64 {
	best := 0.0
	for i := range features {
		feature := &features[i]
		penalty := clamp01(feature.Penalty)
		if penalty <= best {
			continue
		}
		switch feature.Kind {
		case course.RiskPolygon:
			if geom.PolygonContains(p, feature.Rings) {
				best = penalty
			}
		case course.RiskPolyline:
			width := feature.WidthM
			if !isFinite(width) || width <= 0 {
				continue
			}
			distance := geom.DistanceToPolyline(p, feature.Line)
			if distance >= width {
				continue
			}
			scaled := penalty * (1 - distance/width)
			if scaled > best {
				best = scaled
			}
		}
	}
	return best
}

// LateralWindOffset returns the deterministic sideways drift produced by a
// crosswind over the given flight time. Non-finite inputs and non-positive
// flight times yield 0.
func LateralWindOffset(windCrossMps, flightTimeS float64) float64 {
	if !isFinite(windCrossMps) || !isFinite(flightTimeS) || flightTimeS <= 0 {
		return 0
	}
	return windCrossMps * flightTimeS * CrosswindGain
}

// EstimateFlightTime approximates ball flight time in seconds for a carry
// distance, clipped to the 40..320 m band the model was tuned on.
func EstimateFlightTime(distanceM float64) float64 {
	if !isFinite(distanceM) || distanceM <= 0 {
		return 0
	}
	clipped := math.Max(40, math.Min(320, distanceM))
	return math.Max(1.8, math.Min(4.8, clipped/65))
}

func sanitizeRadius(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

func clamp01(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
