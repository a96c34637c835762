package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/mc"
	"github.com/stitts-dev/caddie-engine/internal/player"
)

// geoAt offsets a base coordinate roughly northward by the given meters.
func geoAt(northM float64) geom.GeoPoint {
	return geom.GeoPoint{Lat: 59.3293 + northM/111320.0, Lon: 18.0686}
}

func testModel() *player.Model {
	return player.BuildModel(nil, nil, 0)
}

func TestResolveWind(t *testing.T) {
	// Wind from dead ahead of a northward aim is a pure headwind.
	w := resolveWind(&WindInput{SpeedMps: 8, FromDeg: 0}, 0)
	assert.InDelta(t, -8, w.Head, 1e-9)
	assert.InDelta(t, 0, w.Cross, 1e-9)

	// Wind from the east pushes the ball left.
	w = resolveWind(&WindInput{SpeedMps: 6, FromDeg: 90}, 0)
	assert.InDelta(t, -6, w.Cross, 1e-9)
	assert.InDelta(t, 0, w.Head, 1e-9)

	assert.Equal(t, resolvedWind{}, resolveWind(nil, 0))
	assert.Equal(t, resolvedWind{}, resolveWind(&WindInput{SpeedMps: math.NaN(), FromDeg: 45}, 0))
	assert.Equal(t, resolvedWind{}, resolveWind(&WindInput{SpeedMps: -3, FromDeg: 45}, 0))
}

func TestInferPar(t *testing.T) {
	assert.Equal(t, 3, inferPar(150))
	assert.Equal(t, 4, inferPar(300))
	assert.Equal(t, 5, inferPar(500))
	assert.Equal(t, 4, inferPar(math.NaN()))
}

func TestViabilityPenalty(t *testing.T) {
	// A par 3 expects the tee shot to finish near the green.
	assert.Greater(t, viabilityPenalty(40, 3, false, 235), 0.0)
	assert.Equal(t, 0.0, viabilityPenalty(10, 3, false, 235))

	// A par 4 dislikes both very long and very short second shots.
	assert.Greater(t, viabilityPenalty(200, 4, false, 235), 0.0)
	assert.Greater(t, viabilityPenalty(40, 4, false, 235), 0.0)
	assert.Equal(t, 0.0, viabilityPenalty(140, 4, false, 235))

	// Par 5 layups tolerate plenty of distance unless going for the green.
	assert.Equal(t, 0.0, viabilityPenalty(200, 5, false, 235))
	assert.Greater(t, viabilityPenalty(250, 5, true, 235), 0.0)
}

func TestAimDirectionFor(t *testing.T) {
	assert.Equal(t, AimStraight, aimDirectionFor(0.5))
	assert.Equal(t, AimLeft, aimDirectionFor(-4))
	assert.Equal(t, AimRight, aimDirectionFor(4))
}

func TestAimMagnitudeDeg(t *testing.T) {
	assert.InDelta(t, 45, aimMagnitudeDeg(100, 100), 1e-9)
	assert.Equal(t, 0.0, aimMagnitudeDeg(5, 0))
	assert.Equal(t, 0.0, aimMagnitudeDeg(math.NaN(), 100))
	// Magnitude only; direction is carried separately.
	assert.InDelta(t, aimMagnitudeDeg(10, 200), aimMagnitudeDeg(-10, 200), 1e-12)
}

func TestNormalizeSamples(t *testing.T) {
	assert.Equal(t, simDefaultSamples, normalizeSamples(0))
	assert.Equal(t, simMinSamples, normalizeSamples(5))
	assert.Equal(t, simMaxSamples, normalizeSamples(100000))
	assert.Equal(t, 1000, normalizeSamples(1000))
}

func TestFormatEV(t *testing.T) {
	assert.Equal(t, "+0.42", formatEV(0.42))
	assert.Equal(t, "-1.30", formatEV(-1.3))
	assert.Equal(t, "+0.00", formatEV(0))
}

func TestToMcHazardsSkipsPolylines(t *testing.T) {
	features := []course.RiskFeature{
		{ID: "pond", Kind: course.RiskPolygon, Penalty: 1, Rings: [][]geom.Point{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}}},
		{ID: "path", Kind: course.RiskPolyline, Penalty: 0.4, Line: []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}}},
	}
	hazards := toMcHazards(features)
	require.Len(t, hazards, 1)
	assert.Equal(t, "pond", hazards[0].ID)
	require.NotNil(t, hazards[0].Penalty)
	assert.Equal(t, 1.0, *hazards[0].Penalty)
}

func TestToMcTargetsFallsBackToGreenOutline(t *testing.T) {
	outline := [][]geom.Point{{{X: -10, Y: 190}, {X: 10, Y: 190}, {X: 10, Y: 210}, {X: -10, Y: 210}}}
	targets := toMcTargets(nil, outline)
	require.Len(t, targets, 1)
	assert.Equal(t, "green", targets[0].ID)

	priority := 2.0
	explicit := []course.PreparedTarget{
		{ID: "green-back", Rings: outline, Section: course.SectionBack, Priority: &priority},
	}
	targets = toMcTargets(explicit, outline)
	require.Len(t, targets, 1)
	assert.Equal(t, "green-back", targets[0].ID)
	assert.Equal(t, string(course.SectionBack), targets[0].Section)
}

func TestOffsetSeed(t *testing.T) {
	assert.Nil(t, offsetSeed(nil, 3))
	base := uint32(41)
	derived := offsetSeed(&base, 1)
	require.NotNil(t, derived)
	assert.Equal(t, uint32(42), *derived)
	assert.Equal(t, uint32(41), base)
}

func TestPlanTeeShotNoBundle(t *testing.T) {
	p := New(Tuning{}, nil)
	plan := p.PlanTeeShot(TeePlanArgs{
		Tee:    geoAt(0),
		Pin:    geoAt(360),
		Player: testModel(),
	})

	assert.Equal(t, "tee", plan.Kind)
	assert.NotEmpty(t, plan.Club)
	assert.Equal(t, RiskNormal, plan.Mode)
	assert.NotEmpty(t, plan.Reason)
	assert.True(t, isFinite(plan.Risk))
	assert.True(t, isFinite(plan.Landing.DistanceM))
	assert.Greater(t, plan.CarryM, 0.0)
	assert.Nil(t, plan.MC)
}

func TestPlanTeeShotDegenerateFrame(t *testing.T) {
	p := New(Tuning{}, nil)
	plan := p.PlanTeeShot(TeePlanArgs{
		Tee:    geoAt(0),
		Pin:    geoAt(0),
		Player: testModel(),
	})
	assert.Equal(t, "tee", plan.Kind)
	assert.Equal(t, AimStraight, plan.AimDirection)
	assert.Contains(t, plan.Reason, "No course geometry")
}

func TestPlanTeeShotMCDeterministic(t *testing.T) {
	p := New(Tuning{}, nil)
	seed := uint32(7)
	args := TeePlanArgs{
		Tee:       geoAt(0),
		Pin:       geoAt(360),
		Player:    testModel(),
		MCSamples: 256,
		Seed:      &seed,
	}
	first := p.PlanTeeShotMC(args)
	second := p.PlanTeeShotMC(args)

	require.NotNil(t, first.MC)
	require.NotNil(t, second.MC)
	assert.Equal(t, first.Club, second.Club)
	assert.Equal(t, first.Aim, second.Aim)
	assert.Equal(t, *first.MC, *second.MC)
	require.NotNil(t, first.EV)
	assert.Equal(t, first.MC.EV, *first.EV)
}

func TestPlanTeeShotNaNWind(t *testing.T) {
	p := New(Tuning{}, nil)
	plan := p.PlanTeeShot(TeePlanArgs{
		Tee:    geoAt(0),
		Pin:    geoAt(360),
		Player: testModel(),
		Wind:   &WindInput{SpeedMps: math.NaN(), FromDeg: math.Inf(1)},
	})
	assert.Equal(t, 0.0, plan.CrosswindMps)
	assert.Equal(t, 0.0, plan.HeadwindMps)
	assert.True(t, isFinite(plan.Risk))
}

func TestPlanApproachNoBundle(t *testing.T) {
	p := New(Tuning{}, nil)
	plan := p.PlanApproach(ApproachPlanArgs{
		Ball:   geoAt(0),
		Pin:    geoAt(150),
		Player: testModel(),
	})

	assert.Equal(t, "approach", plan.Kind)
	assert.Equal(t, player.Iron7, plan.Club)
	assert.Equal(t, course.GreenSection(""), plan.GreenSection)
	assert.Equal(t, course.FatSideNone, plan.FatSide)
	assert.True(t, isFinite(plan.Risk))
}

func TestPlanApproachPreferredClub(t *testing.T) {
	p := New(Tuning{}, nil)
	plan := p.PlanApproach(ApproachPlanArgs{
		Ball:          geoAt(0),
		Pin:           geoAt(150),
		Player:        testModel(),
		PreferredClub: player.Iron5,
	})
	assert.Equal(t, player.Iron5, plan.Club)
}

func TestPlanApproachMCAttachesResult(t *testing.T) {
	p := New(Tuning{}, nil)
	seed := uint32(11)
	plan := p.PlanApproachMC(ApproachPlanArgs{
		Ball:      geoAt(0),
		Pin:       geoAt(150),
		Player:    testModel(),
		MCSamples: 256,
		Seed:      &seed,
	})
	require.NotNil(t, plan.MC)
	assert.True(t, isFinite(plan.MC.EV))
	require.NotNil(t, plan.EV)
}

func TestInferGreenSection(t *testing.T) {
	green := &course.PreparedGreen{HasYSpan: true, YMin: 180, YMax: 210}

	assert.Equal(t, course.SectionFront, inferGreenSection(geom.Point{Y: 185}, green))
	assert.Equal(t, course.SectionMiddle, inferGreenSection(geom.Point{Y: 195}, green))
	assert.Equal(t, course.SectionBack, inferGreenSection(geom.Point{Y: 208}, green))

	// A green that only publishes one section always reports it.
	restricted := &course.PreparedGreen{
		HasYSpan: true, YMin: 180, YMax: 210,
		Meta: &course.GreenMeta{Sections: []course.GreenSection{course.SectionMiddle}},
	}
	assert.Equal(t, course.SectionMiddle, inferGreenSection(geom.Point{Y: 208}, restricted))

	assert.Equal(t, course.GreenSection(""), inferGreenSection(geom.Point{}, nil))
	assert.Equal(t, course.SectionMiddle, inferGreenSection(geom.Point{Y: 208}, &course.PreparedGreen{}))
}

func TestSelectActiveGreen(t *testing.T) {
	containing := course.PreparedGreen{
		ID:    "a",
		Rings: [][]geom.Point{{{X: -10, Y: 190}, {X: 10, Y: 190}, {X: 10, Y: 210}, {X: -10, Y: 210}}},
	}
	nearby := course.PreparedGreen{ID: "b", Centroid: &geom.Point{X: 0, Y: 300}}

	chosen := selectActiveGreen([]course.PreparedGreen{nearby, containing}, geom.Point{X: 0, Y: 200})
	require.NotNil(t, chosen)
	assert.Equal(t, "a", chosen.ID)

	// Pin outside every ring: nearest centroid wins.
	chosen = selectActiveGreen([]course.PreparedGreen{nearby}, geom.Point{X: 0, Y: 280})
	require.NotNil(t, chosen)
	assert.Equal(t, "b", chosen.ID)

	assert.Nil(t, selectActiveGreen(nil, geom.Point{}))
}

func TestRespectsFatSide(t *testing.T) {
	assert.True(t, respectsFatSide(&approachCandidate{aimOffset: 0.3}, course.FatSideLeft))
	assert.True(t, respectsFatSide(&approachCandidate{aimOffset: -4}, course.FatSideLeft))
	assert.False(t, respectsFatSide(&approachCandidate{aimOffset: 4}, course.FatSideLeft))
	assert.True(t, respectsFatSide(&approachCandidate{aimOffset: 4}, course.FatSideRight))
	assert.True(t, respectsFatSide(nil, course.FatSideNone))
}

func TestFormatMcReasonsDedupes(t *testing.T) {
	result := &mc.Result{Reasons: []mc.Reason{
		{Label: "Crosswind 6.0 m/s"},
		{Label: "Crosswind 6.0 m/s"},
		{Label: "  "},
		{Label: "Hazard left 12%"},
		{Label: "Aim drift 8.0 m"},
	}}
	reasons := formatMcReasons(result, 2)
	assert.Equal(t, []string{"Crosswind 6.0 m/s", "Hazard left 12%"}, reasons)
	assert.Nil(t, formatMcReasons(nil, 2))
}
