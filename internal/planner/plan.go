package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/mc"
	"github.com/stitts-dev/caddie-engine/internal/player"
)

// AimDirection is the coarse lateral direction of an aim point.
type AimDirection string

const (
	AimLeft     AimDirection = "LEFT"
	AimRight    AimDirection = "RIGHT"
	AimStraight AimDirection = "STRAIGHT"
)

// WindInput is the caller-supplied wind observation. Nil means calm.
type WindInput struct {
	SpeedMps float64 `json:"speed_mps"`
	FromDeg  float64 `json:"from_deg"`
}

// Landing is the predicted landing point relative to the aim line.
type Landing struct {
	DistanceM float64 `json:"distance_m"`
	LateralM  float64 `json:"lateral_m"`
}

// Aim is the lateral aim component of a plan.
type Aim struct {
	LateralM float64 `json:"lateral_m"`
}

// ShotPlan is the planner output for one shot.
type ShotPlan struct {
	Kind         string              `json:"kind"`
	Club         player.ClubID       `json:"club"`
	Target       geom.GeoPoint       `json:"target"`
	AimDeg       float64             `json:"aimDeg"`
	AimDirection AimDirection        `json:"aimDirection"`
	Reason       string              `json:"reason"`
	Risk         float64             `json:"risk"`
	EV           *float64            `json:"ev,omitempty"`
	Landing      Landing             `json:"landing"`
	Aim          Aim                 `json:"aim"`
	Mode         RiskMode            `json:"mode"`
	CarryM       float64             `json:"carry_m"`
	CrosswindMps float64             `json:"crosswind_mps"`
	HeadwindMps  float64             `json:"headwind_mps"`
	WindDriftM   float64             `json:"windDrift_m"`
	TuningActive bool                `json:"tuningActive"`
	MC           *mc.Result          `json:"mc"`
	RiskFactors  []string            `json:"riskFactors,omitempty"`
	GreenSection course.GreenSection `json:"greenSection,omitempty"`
	FatSide      course.FatSide      `json:"fatSide,omitempty"`
}

// TeePlanArgs are the tee planner inputs. Par of 0 infers par from hole
// length.
type TeePlanArgs struct {
	Bundle     *course.Bundle
	Tee        geom.GeoPoint
	Pin        geom.GeoPoint
	Player     *player.Model
	RiskMode   RiskMode
	Wind       *WindInput
	SlopeDhM   float64
	GoForGreen bool
	Par        int
	MCSamples  int
	Seed       *uint32
}

// ApproachPlanArgs are the approach planner inputs. An empty PreferredClub
// selects by distance.
type ApproachPlanArgs struct {
	Bundle        *course.Bundle
	Ball          geom.GeoPoint
	Pin           geom.GeoPoint
	Player        *player.Model
	RiskMode      RiskMode
	Wind          *WindInput
	SlopeDhM      float64
	PreferredClub player.ClubID
	MCSamples     int
	Seed          *uint32
}

// Planner runs the candidate search for tee and approach shots.
type Planner struct {
	tuning Tuning
	log    logrus.FieldLogger
}

// New builds a Planner. A zero-value Tuning is replaced with the defaults.
func New(tuning Tuning, log logrus.FieldLogger) *Planner {
	if len(tuning.AimOffsetsTee) == 0 {
		tuning = DefaultTuning()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Planner{tuning: tuning, log: log}
}

// resolvedWind is wind decomposed along the aim heading.
type resolvedWind struct {
	Cross float64
	Head  float64
}

func resolveWind(wind *WindInput, headingDeg float64) resolvedWind {
	if wind == nil {
		return resolvedWind{}
	}
	speed := 0.0
	if isFinite(wind.SpeedMps) && wind.SpeedMps > 0 {
		speed = wind.SpeedMps
	}
	if speed == 0 {
		return resolvedWind{}
	}
	fromDeg := 0.0
	if isFinite(wind.FromDeg) {
		fromDeg = geom.WrapDegrees(wind.FromDeg)
	}
	toDeg := geom.WrapDegrees(fromDeg + 180)
	diffRad := (toDeg - headingDeg) * math.Pi / 180
	return resolvedWind{
		Cross: speed * math.Sin(diffRad),
		Head:  speed * math.Cos(diffRad),
	}
}

// inferPar classifies a hole by its straight-line length.
func inferPar(lengthM float64) int {
	if !isFinite(lengthM) {
		return 4
	}
	if lengthM <= 180 {
		return 3
	}
	if lengthM <= 430 {
		return 4
	}
	return 5
}

// viabilityPenalty scores how playable the remaining distance is for the
// hole's par.
func viabilityPenalty(remainingM float64, par int, goForGreen bool, maxCarryM float64) float64 {
	if !isFinite(remainingM) {
		return 0.2
	}
	penalty := 0.0
	switch {
	case par <= 3:
		if remainingM > 18 {
			penalty += 0.45
		}
	case par == 4:
		if remainingM > 190 {
			penalty += 0.35
		} else if remainingM < 60 {
			penalty += 0.12
		}
	default:
		if remainingM > maxCarryM*1.05 {
			penalty += 0.35
		} else if !goForGreen && remainingM > 210 {
			penalty += 0.25
		} else if goForGreen && remainingM > maxCarryM*0.9 {
			penalty += 0.18
		}
	}
	return clamp01(penalty)
}

func aimDirectionFor(offsetM float64) AimDirection {
	if math.Abs(offsetM) < 1 {
		return AimStraight
	}
	if offsetM < 0 {
		return AimLeft
	}
	return AimRight
}

// aimMagnitudeDeg converts a lateral offset at a distance into an unsigned
// aim angle.
func aimMagnitudeDeg(offsetM, distanceM float64) float64 {
	if !isFinite(offsetM) || !isFinite(distanceM) || distanceM <= 0 {
		return 0
	}
	rad := math.Atan2(math.Abs(offsetM), distanceM)
	return math.Abs(rad * 180 / math.Pi)
}

// fairwayPenalty is the scaled fraction of dispersion-ellipse samples outside
// every fairway ring. With no fairway data a flat penalty applies.
func (p *Planner) fairwayPenalty(center geom.Point, longRadius, latRadius float64, fairways [][]geom.Point) float64 {
	if len(fairways) == 0 {
		return p.tuning.FairwayMissFlat
	}
	samples := geom.SampleEllipse(center, longRadius, latRadius)
	outside := 0
	for _, sample := range samples {
		if !geom.PolygonContains(sample, fairways) {
			outside++
		}
	}
	ratio := float64(outside) / float64(len(samples))
	return clamp01(ratio * p.tuning.FairwayMissScale)
}

// greenPenalty is the approach analogue of fairwayPenalty against the green
// rings. No green data means no penalty.
func (p *Planner) greenPenalty(center geom.Point, longRadius, latRadius float64, greenRings [][]geom.Point) float64 {
	if len(greenRings) == 0 {
		return 0
	}
	samples := geom.SampleEllipse(center, longRadius, latRadius)
	outside := 0
	for _, sample := range samples {
		if !geom.PolygonContains(sample, greenRings) {
			outside++
		}
	}
	ratio := float64(outside) / float64(len(samples))
	return clamp01(ratio * p.tuning.GreenMissScale)
}

// DispersionEllipseForClub exposes the mode-unscaled dispersion ellipse for
// display purposes.
func DispersionEllipseForClub(club player.ClubID, model *player.Model) (longM, latM float64) {
	stats, ok := model.Clubs[club]
	if !ok {
		return 12, 6
	}
	return math.Max(1, stats.SigmaLongM), math.Max(1, stats.SigmaLatM)
}

const (
	simMinSamples     = 32
	simMaxSamples     = 5000
	simDefaultSamples = 800
)

func normalizeSamples(requested int) int {
	if requested <= 0 {
		return simDefaultSamples
	}
	if requested < simMinSamples {
		return simMinSamples
	}
	if requested > simMaxSamples {
		return simMaxSamples
	}
	return requested
}

// toMcHazards converts polygon risk features into simulation hazards.
// Polyline features have no area and are skipped.
func toMcHazards(features []course.RiskFeature) []mc.Polygon {
	hazards := make([]mc.Polygon, 0, len(features))
	for i := range features {
		feature := &features[i]
		if feature.Kind != course.RiskPolygon || len(feature.Rings) == 0 {
			continue
		}
		penalty := feature.Penalty
		hazards = append(hazards, mc.Polygon{
			ID:      feature.ID,
			Label:   feature.ID,
			Rings:   feature.Rings,
			Penalty: &penalty,
		})
	}
	return hazards
}

// toMcTargets converts explicit green targets, falling back to the whole
// green outline when no sections are published.
func toMcTargets(targets []course.PreparedTarget, fallback [][]geom.Point) []mc.Target {
	out := make([]mc.Target, 0, len(targets))
	for i := range targets {
		target := &targets[i]
		if len(target.Rings) == 0 {
			continue
		}
		out = append(out, mc.Target{
			Polygon:  mc.Polygon{ID: target.ID, Rings: target.Rings},
			Section:  string(target.Section),
			Priority: target.Priority,
		})
	}
	if len(out) == 0 && len(fallback) > 0 {
		out = append(out, mc.Target{Polygon: mc.Polygon{ID: "green", Rings: fallback}})
	}
	return out
}

// formatMcReasons extracts up to limit distinct reason labels for display.
func formatMcReasons(result *mc.Result, limit int) []string {
	if result == nil || len(result.Reasons) == 0 {
		return nil
	}
	var reasons []string
	for _, reason := range result.Reasons {
		label := strings.TrimSpace(reason.Label)
		if label == "" || containsString(reasons, label) {
			continue
		}
		reasons = append(reasons, label)
		if len(reasons) >= limit {
			break
		}
	}
	return reasons
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func formatEV(ev float64) string {
	if ev >= 0 {
		return fmt.Sprintf("+%.2f", ev)
	}
	return fmt.Sprintf("%.2f", ev)
}

func offsetSeed(seed *uint32, index int) *uint32 {
	if seed == nil {
		return nil
	}
	derived := *seed + uint32(index)
	return &derived
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
