// Package geom holds the 2D primitives shared by the risk field, the Monte
// Carlo engines and the shot planner: geographic projection into a local aim
// frame, point-in-polygon tests, polyline distance and ellipse sampling.
// Keeping a single implementation here avoids the subtle drift that comes from
// re-deriving the same ray casts in multiple packages.
package geom

import "math"

const earthRadiusM = 6378137.0

// Point is a position in the local aim frame: Y points from the shot origin
// toward the pin, X is lateral with positive values right of the aim line.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GeoPoint is a geographic coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ToLocalENU projects a geographic point into east/north meters relative to
// origin using an equirectangular approximation, which is accurate well past
// golf-hole scale.
func ToLocalENU(origin, p GeoPoint) Point {
	latRad := origin.Lat * math.Pi / 180
	x := (p.Lon - origin.Lon) * math.Pi / 180 * earthRadiusM * math.Cos(latRad)
	y := (p.Lat - origin.Lat) * math.Pi / 180 * earthRadiusM
	return Point{X: x, Y: y}
}

// FromLocalENU is the inverse of ToLocalENU.
func FromLocalENU(origin GeoPoint, p Point) GeoPoint {
	latOffset := p.Y / earthRadiusM * 180 / math.Pi
	lonOffset := p.X / (earthRadiusM * math.Cos(origin.Lat*math.Pi/180)) * 180 / math.Pi
	return GeoPoint{Lat: origin.Lat + latOffset, Lon: origin.Lon + lonOffset}
}

// Frame is the local 2D aim frame for one shot. It is built once per plan
// call and never mutated afterwards.
type Frame struct {
	Origin     GeoPoint
	Cos        float64
	Sin        float64
	HeadingDeg float64
	Pin        Point
}

// BuildFrame projects origin->pin into a frame whose Y axis runs along the
// aim line. Returns nil when the two points coincide or the baseline is
// degenerate.
func BuildFrame(origin, pin GeoPoint) *Frame {
	baseline := ToLocalENU(origin, pin)
	length := math.Hypot(baseline.X, baseline.Y)
	if !isFinite(length) || length <= 0 {
		return nil
	}
	headingRad := math.Atan2(baseline.X, baseline.Y)
	cos := math.Cos(headingRad)
	sin := math.Sin(headingRad)
	return &Frame{
		Origin:     origin,
		Cos:        cos,
		Sin:        sin,
		HeadingDeg: WrapDegrees(headingRad * 180 / math.Pi),
		Pin: Point{
			X: baseline.X*cos - baseline.Y*sin,
			Y: baseline.X*sin + baseline.Y*cos,
		},
	}
}

// ToFrame converts a geographic point into the aim frame.
func (f *Frame) ToFrame(p GeoPoint) Point {
	local := ToLocalENU(f.Origin, p)
	return Point{
		X: local.X*f.Cos - local.Y*f.Sin,
		Y: local.X*f.Sin + local.Y*f.Cos,
	}
}

// FromFrame converts an aim-frame point back to a geographic coordinate.
func (f *Frame) FromFrame(p Point) GeoPoint {
	return FromLocalENU(f.Origin, Point{
		X: p.X*f.Cos + p.Y*f.Sin,
		Y: -p.X*f.Sin + p.Y*f.Cos,
	})
}

// WrapDegrees normalizes an angle to [0, 360).
func WrapDegrees(deg float64) float64 {
	normalized := math.Mod(deg, 360)
	if normalized < 0 {
		normalized += 360
	}
	return normalized
}

// RingContains reports whether p is inside a single ring via ray casting.
// Rings with fewer than three vertices never contain anything.
func RingContains(p Point, ring []Point) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		if (yi > p.Y) != (yj > p.Y) {
			denom := yj - yi
			if denom == 0 {
				denom = 1e-6
			}
			slope := (xj-xi)*(p.Y-yi)/denom + xi
			if slope > p.X {
				inside = !inside
			}
		}
	}
	return inside
}

// PolygonContains applies the even-odd rule across all rings of a feature, so
// a point inside an odd number of rings (outer boundary minus holes) counts
// as contained.
func PolygonContains(p Point, rings [][]Point) bool {
	inside := false
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		if RingContains(p, ring) {
			inside = !inside
		}
	}
	return inside
}

// EllipseSampleCount is the number of boundary points used when a dispersion
// ellipse is rasterized for overlap checks.
const EllipseSampleCount = 36

// SampleEllipse returns EllipseSampleCount equally spaced points on the
// boundary of the ellipse with the given center and radii. The lateral radius
// maps to X and the longitudinal radius to Y, matching the aim frame.
func SampleEllipse(center Point, longRadius, latRadius float64) []Point {
	points := make([]Point, 0, EllipseSampleCount)
	for i := 0; i < EllipseSampleCount; i++ {
		theta := 2 * math.Pi * float64(i) / EllipseSampleCount
		points = append(points, Point{
			X: center.X + latRadius*math.Cos(theta),
			Y: center.Y + longRadius*math.Sin(theta),
		})
	}
	return points
}

// DistanceToPolyline returns the shortest distance from p to any segment of
// the line. A single-vertex line degenerates to point distance; an empty line
// yields +Inf.
func DistanceToPolyline(p Point, line []Point) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}
	if len(line) == 1 {
		return math.Hypot(p.X-line[0].X, p.Y-line[0].Y)
	}
	best := math.Inf(1)
	for i := 0; i+1 < len(line); i++ {
		d := distanceToSegment(p, line[i], line[i+1])
		if d < best {
			best = d
		}
	}
	return best
}

func distanceToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// RingCentroid averages the finite vertices of a ring. The second return is
// false when the ring has no usable vertices.
func RingCentroid(ring []Point) (Point, bool) {
	var sumX, sumY float64
	count := 0
	for _, p := range ring {
		if !isFinite(p.X) || !isFinite(p.Y) {
			continue
		}
		sumX += p.X
		sumY += p.Y
		count++
	}
	if count == 0 {
		return Point{}, false
	}
	return Point{X: sumX / float64(count), Y: sumY / float64(count)}, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
