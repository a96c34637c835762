// Package course turns a raw course bundle (GeoJSON-style feature collection
// plus optional per-green metadata) into the prepared, aim-frame geometry the
// planner and simulators work with.
package course

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/stitts-dev/caddie-engine/internal/geom"
)

// FeatureType is the normalized classification of a course feature.
type FeatureType string

const (
	TypeFairway     FeatureType = "fairway"
	TypeGreen       FeatureType = "green"
	TypeHazard      FeatureType = "hazard"
	TypeWater       FeatureType = "water"
	TypeBunker      FeatureType = "bunker"
	TypeCartPath    FeatureType = "cartpath"
	TypeGreenTarget FeatureType = "green_target"
)

// GreenSection identifies a depth band of a green.
type GreenSection string

const (
	SectionFront  GreenSection = "front"
	SectionMiddle GreenSection = "middle"
	SectionBack   GreenSection = "back"
)

// FatSide marks the safer lateral side of a green.
type FatSide string

const (
	FatSideNone  FatSide = ""
	FatSideLeft  FatSide = "L"
	FatSideRight FatSide = "R"
)

// Geometry is the raw geometry of a bundle feature. Coordinates follow the
// GeoJSON convention ([lon, lat] pairs) with nesting that varies by type, so
// decoding normalizes everything into rings and lines.
type Geometry struct {
	Type string `json:"type"`
	// Rings holds polygon rings; MultiPolygon polygons are flattened into a
	// single ring list, which the even-odd containment rule handles.
	Rings [][][]float64 `json:"-"`
	// Lines holds polyline vertex chains.
	Lines [][][]float64 `json:"-"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// UnmarshalJSON decodes GeoJSON coordinates into the normalized ring/line
// representation. Unknown geometry types decode to an empty Geometry rather
// than an error.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Type = raw.Type
	g.Rings = nil
	g.Lines = nil
	if len(raw.Coordinates) == 0 {
		return nil
	}
	switch strings.ToLower(raw.Type) {
	case "polygon":
		var rings [][][]float64
		if err := json.Unmarshal(raw.Coordinates, &rings); err == nil {
			g.Rings = rings
		}
	case "multipolygon":
		var polygons [][][][]float64
		if err := json.Unmarshal(raw.Coordinates, &polygons); err == nil {
			for _, polygon := range polygons {
				g.Rings = append(g.Rings, polygon...)
			}
		}
	case "linestring":
		var line [][]float64
		if err := json.Unmarshal(raw.Coordinates, &line); err == nil {
			g.Lines = [][][]float64{line}
		}
	case "multilinestring":
		var lines [][][]float64
		if err := json.Unmarshal(raw.Coordinates, &lines); err == nil {
			g.Lines = lines
		}
	}
	return nil
}

// MarshalJSON re-encodes the normalized geometry. Polygon rings round-trip as
// a single Polygon regardless of the original multi/single form.
func (g Geometry) MarshalJSON() ([]byte, error) {
	switch strings.ToLower(g.Type) {
	case "polygon", "multipolygon":
		return json.Marshal(rawGeometryOut{Type: "Polygon", Coordinates: g.Rings})
	case "linestring", "multilinestring":
		return json.Marshal(rawGeometryOut{Type: "MultiLineString", Coordinates: g.Lines})
	}
	return json.Marshal(rawGeometryOut{Type: g.Type})
}

type rawGeometryOut struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates,omitempty"`
}

// Feature is one entry of a course bundle feature collection.
type Feature struct {
	ID         string            `json:"id,omitempty"`
	Type       string            `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Geometry   Geometry          `json:"geometry"`
	Green      *GreenMeta        `json:"green,omitempty"`
}

// GreenMeta carries optional per-green metadata from the bundle provider.
type GreenMeta struct {
	Sections []GreenSection `json:"sections,omitempty"`
	FatSide  FatSide        `json:"fatSide,omitempty"`
	Targets  []GreenTarget  `json:"targets,omitempty"`
}

// GreenTarget is a sub-polygon of a green used as an explicit success target.
type GreenTarget struct {
	ID       string        `json:"id,omitempty"`
	Section  GreenSection  `json:"section,omitempty"`
	Priority *float64      `json:"priority,omitempty"`
	Rings    [][][]float64 `json:"rings"`
}

// Bundle is the feature collection for one hole plus green metadata keyed by
// feature id.
type Bundle struct {
	Features   []Feature             `json:"features"`
	GreensByID map[string]*GreenMeta `json:"greensById,omitempty"`
}

// RiskFeature is a classified obstacle with a penalty weight in [0,1].
// Polygons carry rings; polylines carry a vertex chain and a width within
// which penalty applies with linear falloff.
type RiskFeature struct {
	ID      string
	Kind    RiskKind
	Rings   [][]geom.Point
	Line    []geom.Point
	Penalty float64
	WidthM  float64
}

// RiskKind discriminates polygon and polyline risk features.
type RiskKind string

const (
	RiskPolygon  RiskKind = "polygon"
	RiskPolyline RiskKind = "polyline"
)

// PreparedGreen is one green with its rings in the aim frame and derived
// placement helpers.
type PreparedGreen struct {
	ID       string
	Rings    [][]geom.Point
	Meta     *GreenMeta
	Centroid *geom.Point
	YMin     float64
	YMax     float64
	HasYSpan bool
}

// PreparedTarget is an explicit success target polygon in the aim frame.
type PreparedTarget struct {
	ID       string
	Rings    [][]geom.Point
	Section  GreenSection
	Priority *float64
}

// Prepared is the full aim-frame view of a bundle for one shot.
type Prepared struct {
	Hazards      []RiskFeature
	Fairways     [][]geom.Point
	Greens       []PreparedGreen
	GreenRings   [][]geom.Point
	CartPaths    [][]geom.Point
	GreenTargets []PreparedTarget
}

// Cart paths are treated as narrow linear obstacles with this default width.
const defaultCartPathWidthM = 4.0

var featureTypeTable = map[string]FeatureType{
	"fairway":       TypeFairway,
	"green":         TypeGreen,
	"putting_green": TypeGreen,
	"green_complex": TypeGreen,
	"bunker":        TypeBunker,
	"sand":          TypeBunker,
	"sand_trap":     TypeBunker,
	"water":         TypeWater,
	"pond":          TypeWater,
	"lake":          TypeWater,
	"hazard":        TypeHazard,
	"penalty":       TypeHazard,
	"penalty_area":  TypeHazard,
	"green_target":  TypeGreenTarget,
	"green_section": TypeGreenTarget,
	"target":        TypeGreenTarget,
	"cartpath":      TypeCartPath,
	"cart_path":     TypeCartPath,
	"path":          TypeCartPath,
}

// NormalizeFeatureType maps the free-form type/kind/category property of a
// feature to a supported classification. Unknown values yield "" and the
// feature is skipped, never an error.
func NormalizeFeatureType(f *Feature) FeatureType {
	if f == nil {
		return ""
	}
	for _, key := range []string{"type", "kind", "category"} {
		if raw, ok := f.Properties[key]; ok {
			if t, found := featureTypeTable[strings.ToLower(strings.TrimSpace(raw))]; found {
				return t
			}
		}
	}
	fallback := strings.ToLower(strings.TrimSpace(f.Type))
	if fallback != "" && fallback != "feature" {
		return featureTypeTable[fallback]
	}
	return ""
}

// HazardPenalty is the default penalty weight per hazard classification.
func HazardPenalty(t FeatureType) float64 {
	switch t {
	case TypeWater, TypeHazard:
		return 1.0
	case TypeBunker:
		return 0.6
	default:
		return 0.4
	}
}

func toFramePoint(frame *geom.Frame, coord []float64) (geom.Point, bool) {
	if len(coord) < 2 {
		return geom.Point{}, false
	}
	lon, lat := coord[0], coord[1]
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return geom.Point{}, false
	}
	return frame.ToFrame(geom.GeoPoint{Lat: lat, Lon: lon}), true
}

func collectRings(frame *geom.Frame, g Geometry) [][]geom.Point {
	var rings [][]geom.Point
	push := func(coords [][]float64) {
		ring := make([]geom.Point, 0, len(coords))
		for _, coord := range coords {
			if p, ok := toFramePoint(frame, coord); ok {
				ring = append(ring, p)
			}
		}
		if len(ring) > 0 {
			rings = append(rings, ring)
		}
	}
	for _, ring := range g.Rings {
		push(ring)
	}
	return rings
}

func collectLines(frame *geom.Frame, g Geometry) [][]geom.Point {
	var lines [][]geom.Point
	push := func(coords [][]float64) {
		line := make([]geom.Point, 0, len(coords))
		for _, coord := range coords {
			if p, ok := toFramePoint(frame, coord); ok {
				line = append(line, p)
			}
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	for _, line := range g.Lines {
		push(line)
	}
	return lines
}

func normalizeGreenMeta(meta *GreenMeta) *GreenMeta {
	if meta == nil {
		return nil
	}
	sections := make([]GreenSection, 0, 3)
	for _, s := range meta.Sections {
		if s != SectionFront && s != SectionMiddle && s != SectionBack {
			continue
		}
		if !containsSection(sections, s) {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		sections = []GreenSection{SectionFront, SectionMiddle, SectionBack}
	}
	fatSide := meta.FatSide
	if fatSide != FatSideLeft && fatSide != FatSideRight {
		fatSide = ""
	}
	return &GreenMeta{Sections: sections, FatSide: fatSide, Targets: meta.Targets}
}

func containsSection(sections []GreenSection, s GreenSection) bool {
	for _, existing := range sections {
		if existing == s {
			return true
		}
	}
	return false
}

func resolveGreenMeta(f *Feature, bundle *Bundle) *GreenMeta {
	if f == nil {
		return nil
	}
	if f.ID != "" && bundle != nil && bundle.GreensByID != nil {
		if meta, ok := bundle.GreensByID[f.ID]; ok {
			return normalizeGreenMeta(meta)
		}
	}
	return normalizeGreenMeta(f.Green)
}

func parseSection(raw string) GreenSection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "front":
		return SectionFront
	case "middle":
		return SectionMiddle
	case "back":
		return SectionBack
	}
	return ""
}

func parsePriority(props map[string]string) *float64 {
	for _, key := range []string{"priority", "order", "rank"} {
		raw, ok := props[key]
		if !ok {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return &v
		}
	}
	return nil
}

// Prepare projects every supported feature of the bundle into the aim frame.
// Unclassifiable or unsupported geometry is silently skipped.
func Prepare(bundle *Bundle, frame *geom.Frame) *Prepared {
	prepared := &Prepared{}
	if bundle == nil || frame == nil {
		return prepared
	}
	for i := range bundle.Features {
		f := &bundle.Features[i]
		domType := NormalizeFeatureType(f)
		geomType := strings.ToLower(f.Geometry.Type)
		isPoly := geomType == "polygon" || geomType == "multipolygon"
		isLine := geomType == "linestring" || geomType == "multilinestring"

		switch {
		case domType == TypeFairway && isPoly:
			prepared.Fairways = append(prepared.Fairways, collectRings(frame, f.Geometry)...)
		case domType == TypeGreen && isPoly:
			rings := collectRings(frame, f.Geometry)
			if len(rings) == 0 {
				continue
			}
			prepared.GreenRings = append(prepared.GreenRings, rings...)
			prepared.Greens = append(prepared.Greens, buildGreen(f, bundle, rings))
		case (domType == TypeHazard || domType == TypeWater || domType == TypeBunker) && isPoly:
			rings := collectRings(frame, f.Geometry)
			if len(rings) == 0 {
				continue
			}
			prepared.Hazards = append(prepared.Hazards, RiskFeature{
				ID:      f.ID,
				Kind:    RiskPolygon,
				Rings:   rings,
				Penalty: HazardPenalty(domType),
			})
		case domType == TypeGreenTarget && isPoly:
			rings := collectRings(frame, f.Geometry)
			if len(rings) == 0 {
				continue
			}
			section := ""
			for _, key := range []string{"section", "segment", "label"} {
				if raw, ok := f.Properties[key]; ok && section == "" {
					section = string(parseSection(raw))
				}
			}
			prepared.GreenTargets = append(prepared.GreenTargets, PreparedTarget{
				ID:       f.ID,
				Rings:    rings,
				Section:  GreenSection(section),
				Priority: parsePriority(f.Properties),
			})
		case domType == TypeCartPath && isLine:
			prepared.CartPaths = append(prepared.CartPaths, collectLines(frame, f.Geometry)...)
		}
	}

	// Green metadata can declare its own target polygons; fold them in after
	// the feature scan so they share the prepared target list.
	for _, green := range prepared.Greens {
		if green.Meta == nil {
			continue
		}
		for _, target := range green.Meta.Targets {
			rings := targetRings(frame, target.Rings)
			if len(rings) == 0 {
				continue
			}
			id := target.ID
			if id == "" {
				id = green.ID
			}
			prepared.GreenTargets = append(prepared.GreenTargets, PreparedTarget{
				ID:       id,
				Rings:    rings,
				Section:  target.Section,
				Priority: target.Priority,
			})
		}
	}
	return prepared
}

func targetRings(frame *geom.Frame, raw [][][]float64) [][]geom.Point {
	var rings [][]geom.Point
	for _, ring := range raw {
		local := make([]geom.Point, 0, len(ring))
		for _, coord := range ring {
			if p, ok := toFramePoint(frame, coord); ok {
				local = append(local, p)
			}
		}
		if len(local) >= 3 {
			rings = append(rings, local)
		}
	}
	return rings
}

func buildGreen(f *Feature, bundle *Bundle, rings [][]geom.Point) PreparedGreen {
	green := PreparedGreen{
		ID:    f.ID,
		Rings: rings,
		Meta:  resolveGreenMeta(f, bundle),
	}
	for _, ring := range rings {
		if c, ok := geom.RingCentroid(ring); ok {
			centroid := c
			green.Centroid = &centroid
			break
		}
	}
	minY := math.Inf(1)
	maxY := math.Inf(-1)
	for _, ring := range rings {
		for _, p := range ring {
			if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
				continue
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	if !math.IsInf(minY, 1) && !math.IsInf(maxY, -1) {
		green.YMin = minY
		green.YMax = maxY
		green.HasYSpan = true
	}
	return green
}

// CartPathRiskFeatures wraps prepared cart paths as polyline risk features
// with the default width and penalty.
func (p *Prepared) CartPathRiskFeatures() []RiskFeature {
	features := make([]RiskFeature, 0, len(p.CartPaths))
	for _, line := range p.CartPaths {
		features = append(features, RiskFeature{
			Kind:    RiskPolyline,
			Line:    line,
			Penalty: 0.4,
			WidthM:  defaultCartPathWidthM,
		})
	}
	return features
}
