package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFramePinOnAimAxis(t *testing.T) {
	origin := GeoPoint{Lat: 59.3293, Lon: 18.0686}
	pin := GeoPoint{Lat: 59.3310, Lon: 18.0700}

	frame := BuildFrame(origin, pin)
	require.NotNil(t, frame)

	// The pin sits on the aim axis: no lateral component, positive range.
	assert.InDelta(t, 0, frame.Pin.X, 1e-6)
	assert.Greater(t, frame.Pin.Y, 0.0)

	baseline := ToLocalENU(origin, pin)
	assert.InDelta(t, math.Hypot(baseline.X, baseline.Y), frame.Pin.Y, 1e-6)
}

func TestBuildFrameDegenerate(t *testing.T) {
	origin := GeoPoint{Lat: 59.3293, Lon: 18.0686}
	assert.Nil(t, BuildFrame(origin, origin))
}

func TestFrameRoundTrip(t *testing.T) {
	origin := GeoPoint{Lat: 40.0, Lon: -75.0}
	pin := GeoPoint{Lat: 40.003, Lon: -74.998}
	frame := BuildFrame(origin, pin)
	require.NotNil(t, frame)

	points := []GeoPoint{
		{Lat: 40.001, Lon: -74.999},
		{Lat: 40.0025, Lon: -75.0005},
		origin,
		pin,
	}
	for _, p := range points {
		back := frame.FromFrame(frame.ToFrame(p))
		assert.InDelta(t, p.Lat, back.Lat, 1e-9)
		assert.InDelta(t, p.Lon, back.Lon, 1e-9)
	}
}

func TestWrapDegrees(t *testing.T) {
	assert.Equal(t, 0.0, WrapDegrees(0))
	assert.Equal(t, 0.0, WrapDegrees(360))
	assert.Equal(t, 350.0, WrapDegrees(-10))
	assert.Equal(t, 5.0, WrapDegrees(725))
}

func square(cx, cy, half float64) []Point {
	return []Point{
		{X: cx - half, Y: cy - half},
		{X: cx + half, Y: cy - half},
		{X: cx + half, Y: cy + half},
		{X: cx - half, Y: cy + half},
	}
}

func TestRingContains(t *testing.T) {
	ring := square(0, 0, 10)

	assert.True(t, RingContains(Point{X: 0, Y: 0}, ring))
	assert.True(t, RingContains(Point{X: 9.9, Y: -9.9}, ring))
	assert.False(t, RingContains(Point{X: 10.5, Y: 0}, ring))
	assert.False(t, RingContains(Point{X: 0, Y: -11}, ring))
}

func TestRingContainsDegenerate(t *testing.T) {
	assert.False(t, RingContains(Point{}, nil))
	assert.False(t, RingContains(Point{}, []Point{{X: 1, Y: 1}, {X: 2, Y: 2}}))
}

func TestPolygonContainsWithHole(t *testing.T) {
	outer := square(0, 0, 10)
	hole := square(0, 0, 3)
	rings := [][]Point{outer, hole}

	// Inside the outer ring but outside the hole.
	assert.True(t, PolygonContains(Point{X: 5, Y: 5}, rings))
	// Inside both rings cancels out under the even-odd rule.
	assert.False(t, PolygonContains(Point{X: 0, Y: 0}, rings))
	assert.False(t, PolygonContains(Point{X: 20, Y: 0}, rings))
}

func TestSampleEllipse(t *testing.T) {
	center := Point{X: 3, Y: -2}
	samples := SampleEllipse(center, 20, 8)
	require.Len(t, samples, EllipseSampleCount)

	for _, s := range samples {
		dx := (s.X - center.X) / 8
		dy := (s.Y - center.Y) / 20
		assert.InDelta(t, 1, dx*dx+dy*dy, 1e-9)
	}
}

func TestDistanceToPolyline(t *testing.T) {
	line := []Point{{X: 0, Y: 0}, {X: 10, Y: 0}}

	assert.InDelta(t, 5, DistanceToPolyline(Point{X: 5, Y: 5}, line), 1e-9)
	assert.InDelta(t, 5, DistanceToPolyline(Point{X: -5, Y: 0}, line), 1e-9)
	assert.InDelta(t, 0, DistanceToPolyline(Point{X: 7, Y: 0}, line), 1e-9)

	assert.True(t, math.IsInf(DistanceToPolyline(Point{}, nil), 1))
	assert.InDelta(t, math.Sqrt(2), DistanceToPolyline(Point{X: 1, Y: 1}, []Point{{X: 0, Y: 0}}), 1e-9)
}

func TestRingCentroid(t *testing.T) {
	centroid, ok := RingCentroid(square(4, -6, 2))
	require.True(t, ok)
	assert.InDelta(t, 4, centroid.X, 1e-9)
	assert.InDelta(t, -6, centroid.Y, 1e-9)

	_, ok = RingCentroid(nil)
	assert.False(t, ok)

	withNaN := []Point{{X: math.NaN(), Y: 1}, {X: 2, Y: 4}}
	centroid, ok = RingCentroid(withNaN)
	require.True(t, ok)
	assert.InDelta(t, 2, centroid.X, 1e-9)
	assert.InDelta(t, 4, centroid.Y, 1e-9)
}
