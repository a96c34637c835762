package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
)

func rectRings(minX, minY, maxX, maxY float64) [][]geom.Point {
	return [][]geom.Point{{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}}
}

func TestEllipseOverlapRiskEmptyFeatures(t *testing.T) {
	risk := EllipseOverlapRisk(OverlapArgs{
		Center:      geom.Point{Y: 200},
		LongRadiusM: 20,
		LatRadiusM:  8,
	})
	assert.Equal(t, 0.0, risk)
}

func TestEllipseOverlapRiskFullyInside(t *testing.T) {
	water := course.RiskFeature{
		Kind:    course.RiskPolygon,
		Rings:   rectRings(-100, 100, 100, 300),
		Penalty: 1,
	}
	risk := EllipseOverlapRisk(OverlapArgs{
		Center:      geom.Point{Y: 200},
		LongRadiusM: 20,
		LatRadiusM:  8,
		Features:    []course.RiskFeature{water},
	})
	assert.Equal(t, 1.0, risk)
}

func TestEllipseOverlapRiskPartial(t *testing.T) {
	// Hazard covers only the right half of the ellipse.
	water := course.RiskFeature{
		Kind:    course.RiskPolygon,
		Rings:   rectRings(0, 100, 100, 300),
		Penalty: 1,
	}
	risk := EllipseOverlapRisk(OverlapArgs{
		Center:      geom.Point{X: 0, Y: 200},
		LongRadiusM: 20,
		LatRadiusM:  8,
		Features:    []course.RiskFeature{water},
	})
	assert.Greater(t, risk, 0.2)
	assert.Less(t, risk, 0.8)
}

func TestEllipseOverlapRiskScalesWithPenalty(t *testing.T) {
	args := OverlapArgs{
		Center:      geom.Point{Y: 200},
		LongRadiusM: 20,
		LatRadiusM:  8,
	}
	full := args
	full.Features = []course.RiskFeature{{
		Kind:    course.RiskPolygon,
		Rings:   rectRings(-100, 100, 100, 300),
		Penalty: 1,
	}}
	half := args
	half.Features = []course.RiskFeature{{
		Kind:    course.RiskPolygon,
		Rings:   rectRings(-100, 100, 100, 300),
		Penalty: 0.5,
	}}
	assert.InDelta(t, 0.5, EllipseOverlapRisk(half), 1e-9)
	assert.Greater(t, EllipseOverlapRisk(full), EllipseOverlapRisk(half))
}

func TestEllipseOverlapRiskPolylineFalloff(t *testing.T) {
	path := course.RiskFeature{
		Kind:    course.RiskPolyline,
		Line:    []geom.Point{{X: 0, Y: 0}, {X: 0, Y: 400}},
		Penalty: 1,
		WidthM:  10,
	}

	near := EllipseOverlapRisk(OverlapArgs{
		Center:      geom.Point{X: 2, Y: 200},
		LongRadiusM: 5,
		LatRadiusM:  3,
		Features:    []course.RiskFeature{path},
	})
	far := EllipseOverlapRisk(OverlapArgs{
		Center:      geom.Point{X: 50, Y: 200},
		LongRadiusM: 5,
		LatRadiusM:  3,
		Features:    []course.RiskFeature{path},
	})
	assert.Greater(t, near, 0.0)
	assert.Equal(t, 0.0, far)
}

func TestEllipseOverlapRiskDegenerateRadii(t *testing.T) {
	water := course.RiskFeature{
		Kind:    course.RiskPolygon,
		Rings:   rectRings(-100, -100, 100, 100),
		Penalty: 1,
	}
	risk := EllipseOverlapRisk(OverlapArgs{
		Center:   geom.Point{},
		Features: []course.RiskFeature{water},
	})
	assert.Equal(t, 0.0, risk)

	risk = EllipseOverlapRisk(OverlapArgs{
		Center:      geom.Point{},
		LongRadiusM: math.NaN(),
		LatRadiusM:  -5,
		Features:    []course.RiskFeature{water},
	})
	assert.Equal(t, 0.0, risk)
}

func TestLateralWindOffset(t *testing.T) {
	assert.InDelta(t, 12*4*CrosswindGain, LateralWindOffset(12, 4), 1e-9)
	assert.Equal(t, 0.0, LateralWindOffset(math.NaN(), 4))
	assert.Equal(t, 0.0, LateralWindOffset(10, 0))
	assert.Equal(t, 0.0, LateralWindOffset(10, -1))
	// Sign follows the crosswind direction.
	assert.Less(t, LateralWindOffset(-8, 4), 0.0)
}

func TestEstimateFlightTime(t *testing.T) {
	assert.Equal(t, 0.0, EstimateFlightTime(0))
	assert.Equal(t, 0.0, EstimateFlightTime(math.Inf(1)))

	// Short shots clip at the lower band.
	assert.InDelta(t, 1.8, EstimateFlightTime(30), 1e-9)
	// Long shots clip at the upper band.
	assert.InDelta(t, 4.8, EstimateFlightTime(400), 1e-9)
	// Mid-range scales linearly.
	assert.InDelta(t, 200.0/65, EstimateFlightTime(200), 1e-9)

	assert.True(t, EstimateFlightTime(150) > EstimateFlightTime(100))
}
