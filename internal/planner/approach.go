package planner

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/mc"
	"github.com/stitts-dev/caddie-engine/internal/player"
	"github.com/stitts-dev/caddie-engine/internal/risk"
)

type approachCandidate struct {
	aimOffset float64
	aimDeg    float64
	aimDir    AimDirection
	risk      float64
	combined  float64
	centerX   float64
	sigmaLong float64
	sigmaLat  float64
	mc        *mc.Result
	ev        float64
	evOK      bool
}

func (c *approachCandidate) aimOffsetM() float64  { return c.aimOffset }
func (c *approachCandidate) mcResult() *mc.Result { return c.mc }
func (c *approachCandidate) evScore() (float64, bool) {
	if c.evOK && isFinite(c.ev) {
		return c.ev, true
	}
	return 0, false
}

// PlanApproach runs the closed-form approach search without the Monte Carlo
// refinement.
func (p *Planner) PlanApproach(args ApproachPlanArgs) ShotPlan {
	return p.planApproach(args, false)
}

// PlanApproachMC runs the approach search and refines the leading candidates
// with the Monte Carlo engine.
func (p *Planner) PlanApproachMC(args ApproachPlanArgs) ShotPlan {
	return p.planApproach(args, true)
}

func (p *Planner) planApproach(args ApproachPlanArgs, useMC bool) ShotPlan {
	args.RiskMode = NormalizeRiskMode(args.RiskMode)
	frame := geom.BuildFrame(args.Ball, args.Pin)
	if frame == nil {
		return p.approachFallback(args, "No geometry available; play straight at pin.")
	}
	prepared := course.Prepare(args.Bundle, frame)
	distance := math.Max(0, frame.Pin.Y)
	preferredClub := args.PreferredClub
	if preferredClub == "" {
		preferredClub = player.SelectClubForDistance(distance, args.Player)
	}
	stats, ok := args.Player.Clubs[preferredClub]
	if !ok {
		stats = args.Player.Clubs[player.ClubSequence[0]]
	}
	multiplier := riskMultiplier[args.RiskMode]
	sigmaLong := stats.SigmaLongM * multiplier
	sigmaLat := stats.SigmaLatM * multiplier

	activeGreen := selectActiveGreen(prepared.Greens, frame.Pin)
	selectedSection := inferGreenSection(frame.Pin, activeGreen)
	fatSide := course.FatSideNone
	if activeGreen != nil && activeGreen.Meta != nil {
		fatSide = activeGreen.Meta.FatSide
	}

	wind := resolveWind(args.Wind, frame.HeadingDeg)
	rangeForSim := distance
	if rangeForSim == 0 {
		rangeForSim = stats.CarryM
	}
	flightTime := risk.EstimateFlightTime(rangeForSim)
	drift := risk.LateralWindOffset(wind.Cross, flightTime)
	fatBias := p.fatSideBias(fatSideBiasArgs{
		fatSide:    fatSide,
		hazards:    prepared.Hazards,
		greenRings: prepared.GreenRings,
		sigmaLong:  sigmaLong,
		sigmaLat:   sigmaLat,
		drift:      drift,
		distance:   distance,
		mode:       args.RiskMode,
	})

	candidates := make([]*approachCandidate, 0, len(p.tuning.AimOffsetsApproach))
	for _, aimOffset := range p.tuning.AimOffsetsApproach {
		biased := aimOffset + fatBias
		centerX := biased + drift
		hazardRisk := risk.EllipseOverlapRisk(risk.OverlapArgs{
			Center:      geom.Point{X: centerX, Y: distance},
			LongRadiusM: sigmaLong,
			LatRadiusM:  sigmaLat,
			Features:    prepared.Hazards,
		})
		greenRisk := p.greenPenalty(geom.Point{X: centerX, Y: distance}, sigmaLong, sigmaLat, prepared.GreenRings)
		candidates = append(candidates, &approachCandidate{
			aimOffset: biased,
			aimDeg:    aimMagnitudeDeg(biased, rangeForSim),
			aimDir:    aimDirectionFor(biased),
			risk:      hazardRisk,
			combined:  clamp01(hazardRisk + greenRisk),
			centerX:   centerX,
			sigmaLong: sigmaLong,
			sigmaLat:  sigmaLat,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.combined != b.combined {
			return a.combined < b.combined
		}
		offA := math.Abs(a.aimOffset)
		offB := math.Abs(b.aimOffset)
		if offA != offB {
			return offA < offB
		}
		return a.aimOffset < b.aimOffset
	})

	final := selectFatSideAware(candidates, candidates[0], fatSide)
	var mcResult *mc.Result
	if useMC {
		sampleCount := normalizeSamples(args.MCSamples)
		mcHazards := toMcHazards(prepared.Hazards)
		mcTargets := toMcTargets(prepared.GreenTargets, prepared.GreenRings)
		top := p.tuning.MCTopApproach
		if top > len(candidates) {
			top = len(candidates)
		}
		evaluated := candidates[:top]
		for i, candidate := range evaluated {
			result := mc.Run(mc.Args{
				Samples:      sampleCount,
				Seed:         offsetSeed(args.Seed, i),
				RangeM:       rangeForSim,
				AimOffsetM:   candidate.aimOffset,
				SigmaLongM:   candidate.sigmaLong,
				SigmaLatM:    candidate.sigmaLat,
				Wind:         mc.Wind{Cross: wind.Cross, Head: wind.Head},
				Hazards:      mcHazards,
				GreenTargets: mcTargets,
				Pin:          &frame.Pin,
			})
			candidate.mc = &result
			candidate.ev = result.EV
			candidate.evOK = true
		}
		var safe []*approachCandidate
		for _, candidate := range evaluated {
			if candidate.mc.HazardRate <= p.tuning.RiskGate {
				safe = append(safe, candidate)
			}
		}
		pool := safe
		if len(pool) == 0 {
			pool = append([]*approachCandidate{}, evaluated...)
		}
		sort.SliceStable(pool, func(i, j int) bool {
			a, b := pool[i], pool[j]
			evA, okA := a.evScore()
			evB, okB := b.evScore()
			if !okA {
				evA = math.Inf(-1)
			}
			if !okB {
				evB = math.Inf(-1)
			}
			if evA != evB {
				return evA > evB
			}
			if a.mc.HazardRate != b.mc.HazardRate {
				return a.mc.HazardRate < b.mc.HazardRate
			}
			return math.Abs(a.aimOffset) < math.Abs(b.aimOffset)
		})
		if len(pool) > 0 {
			selected := adjustCandidateForHazard(pool, pool[0], p.tuning.RiskGate, args.RiskMode)
			final = selectFatSideAware(pool, selected, fatSide)
			mcResult = final.mc
			if mcResult == nil {
				mcResult = selected.mc
			}
		}
	}

	target := frame.FromFrame(geom.Point{X: final.aimOffset, Y: distance})
	var reasonParts []string
	if final.aimDir != AimStraight {
		reasonParts = append(reasonParts, fmt.Sprintf("Favours %s side of green.", strings.ToLower(string(final.aimDir))))
	} else {
		reasonParts = append(reasonParts, "Play center of green.")
	}
	riskValue := final.combined
	if mcResult != nil {
		riskValue = mcResult.HazardRate
	}
	if riskValue > 0.4 {
		reasonParts = append(reasonParts, "High risk: bail out.")
	} else {
		reasonParts = append(reasonParts, fmt.Sprintf("Risk approx %d%%.", int(math.Round(riskValue*100))))
	}
	if mcResult != nil {
		reasonParts = append(reasonParts, fmt.Sprintf(
			"MC hazard %.0f%%, success %.0f%%, EV %s.",
			mcResult.HazardRate*100, mcResult.SuccessRate*100, formatEV(mcResult.EV),
		))
	}

	plan := ShotPlan{
		Kind:         "approach",
		Club:         preferredClub,
		Target:       target,
		AimDeg:       final.aimDeg,
		AimDirection: final.aimDir,
		Reason:       strings.Join(reasonParts, " "),
		Risk:         riskValue,
		Landing:      Landing{DistanceM: distance, LateralM: final.centerX},
		Aim:          Aim{LateralM: final.aimOffset},
		Mode:         args.RiskMode,
		CarryM:       stats.CarryM,
		CrosswindMps: wind.Cross,
		HeadwindMps:  wind.Head,
		WindDriftM:   final.centerX - final.aimOffset,
		TuningActive: args.Player.TuningActive,
		GreenSection: selectedSection,
		FatSide:      fatSide,
	}
	if mcResult != nil {
		ev := mcResult.EV
		plan.EV = &ev
	} else if final.evOK {
		ev := final.ev
		plan.EV = &ev
	}
	if useMC {
		plan.MC = mcResult
		plan.RiskFactors = formatMcReasons(mcResult, 2)
	}
	return plan
}

// respectsFatSide reports whether a candidate's aim keeps to the fat side of
// the green. Near-center aims always pass.
func respectsFatSide(candidate *approachCandidate, fatSide course.FatSide) bool {
	if candidate == nil || fatSide == course.FatSideNone {
		return true
	}
	if math.Abs(candidate.aimOffset) <= oppositeAimThreshold {
		return true
	}
	if fatSide == course.FatSideLeft {
		return candidate.aimOffset <= 0
	}
	return candidate.aimOffset >= 0
}

func selectFatSideAware(list []*approachCandidate, fallback *approachCandidate, fatSide course.FatSide) *approachCandidate {
	if fatSide == course.FatSideNone {
		return fallback
	}
	for _, candidate := range list {
		if respectsFatSide(candidate, fatSide) {
			return candidate
		}
	}
	return fallback
}

// selectActiveGreen picks the green containing the pin, else the one whose
// centroid is nearest.
func selectActiveGreen(greens []course.PreparedGreen, pin geom.Point) *course.PreparedGreen {
	if len(greens) == 0 {
		return nil
	}
	for i := range greens {
		green := &greens[i]
		if len(green.Rings) == 0 {
			continue
		}
		if geom.PolygonContains(pin, green.Rings) {
			return green
		}
	}
	var best *course.PreparedGreen
	bestDistance := math.Inf(1)
	for i := range greens {
		green := &greens[i]
		if green.Centroid == nil {
			continue
		}
		d := math.Hypot(pin.X-green.Centroid.X, pin.Y-green.Centroid.Y)
		if d < bestDistance {
			bestDistance = d
			best = green
		}
	}
	return best
}

var defaultGreenSections = []course.GreenSection{
	course.SectionFront,
	course.SectionMiddle,
	course.SectionBack,
}

// inferGreenSection places the pin in the front, middle, or back third of
// the green's depth, restricted to the sections the green publishes.
func inferGreenSection(pin geom.Point, green *course.PreparedGreen) course.GreenSection {
	if green == nil {
		return ""
	}
	available := defaultGreenSections
	if green.Meta != nil && len(green.Meta.Sections) > 0 {
		available = green.Meta.Sections
	}
	deduped := make([]course.GreenSection, 0, len(available))
	for _, section := range available {
		if !containsSection(deduped, section) {
			deduped = append(deduped, section)
		}
	}
	if len(deduped) == 0 {
		deduped = defaultGreenSections
	}
	fallback := deduped[0]
	if containsSection(deduped, course.SectionMiddle) {
		fallback = course.SectionMiddle
	}
	if !green.HasYSpan {
		return fallback
	}
	span := green.YMax - green.YMin
	if !isFinite(span) || span <= 1 {
		return fallback
	}
	ratio := (pin.Y - green.YMin) / span
	ratio = math.Max(0, math.Min(1, ratio))
	if ratio <= 0.33 && containsSection(deduped, course.SectionFront) {
		return course.SectionFront
	}
	if ratio >= 0.67 && containsSection(deduped, course.SectionBack) {
		return course.SectionBack
	}
	if containsSection(deduped, course.SectionMiddle) {
		return course.SectionMiddle
	}
	return deduped[0]
}

func containsSection(sections []course.GreenSection, s course.GreenSection) bool {
	for _, section := range sections {
		if section == s {
			return true
		}
	}
	return false
}

type fatSideBiasArgs struct {
	fatSide    course.FatSide
	hazards    []course.RiskFeature
	greenRings [][]geom.Point
	sigmaLong  float64
	sigmaLat   float64
	drift      float64
	distance   float64
	mode       RiskMode
}

// fatSideBias shifts the whole aim grid toward the fat side of the green
// when the thin side carries materially more hazard or short-side pressure.
// Returns a signed offset in meters, 0 when no shift applies.
func (p *Planner) fatSideBias(args fatSideBiasArgs) float64 {
	if args.fatSide == course.FatSideNone {
		return 0
	}
	sigmaLat := args.sigmaLat
	if !isFinite(sigmaLat) || sigmaLat < p.tuning.FatBiasMinSigmaLat {
		return 0
	}
	direction := 1.0
	if args.fatSide == course.FatSideLeft {
		direction = -1
	}
	probe := math.Max(p.tuning.FatBiasProbeMinM, math.Min(p.tuning.FatBiasProbeMaxM, sigmaLat*p.tuning.FatBiasProbeScale))
	evaluate := func(offset float64) (hazard, green float64) {
		center := geom.Point{X: offset + args.drift, Y: args.distance}
		hazard = risk.EllipseOverlapRisk(risk.OverlapArgs{
			Center:      center,
			LongRadiusM: math.Max(1, args.sigmaLong),
			LatRadiusM:  math.Max(1, sigmaLat),
			Features:    args.hazards,
		})
		green = p.greenPenalty(center, math.Max(1, args.sigmaLong), math.Max(1, sigmaLat), args.greenRings)
		return hazard, green
	}
	thinHazard, thinGreen := evaluate(probe * -direction)
	fatHazard, fatGreen := evaluate(probe * direction)
	pressure := math.Max(0, thinHazard-fatHazard) + 0.6*math.Max(0, thinGreen-fatGreen)
	magnitude := pressure*p.tuning.FatBiasPressureGain + math.Max(0, sigmaLat-p.tuning.FatBiasMinSigmaLat)*p.tuning.FatBiasSigmaGain
	magnitude = math.Min(p.tuning.FatBiasMaxM, magnitude)
	if scale, ok := fatBiasModeScale[args.mode]; ok {
		magnitude *= scale
	}
	if magnitude < p.tuning.FatBiasMinMagnitudeM {
		return 0
	}
	return magnitude * direction
}

func (p *Planner) approachFallback(args ApproachPlanArgs, reason string) ShotPlan {
	return ShotPlan{
		Kind:         "approach",
		Club:         player.SelectClubForDistance(0, args.Player),
		Target:       args.Pin,
		AimDirection: AimStraight,
		Reason:       reason,
		Mode:         args.RiskMode,
		TuningActive: args.Player.TuningActive,
	}
}
