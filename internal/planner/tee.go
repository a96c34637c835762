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

type teeCandidate struct {
	club      player.ClubID
	carry     float64
	distance  float64
	aimOffset float64
	aimDeg    float64
	aimDir    AimDirection
	risk      float64
	combined  float64
	remaining float64
	centerX   float64
	sigmaLong float64
	sigmaLat  float64
	mc        *mc.Result
	ev        float64
	evOK      bool
}

func (c *teeCandidate) aimOffsetM() float64   { return c.aimOffset }
func (c *teeCandidate) mcResult() *mc.Result  { return c.mc }
func (c *teeCandidate) evScore() (float64, bool) {
	if c.evOK && isFinite(c.ev) {
		return c.ev, true
	}
	return 0, false
}

// PlanTeeShot runs the closed-form tee search without the Monte Carlo
// refinement.
func (p *Planner) PlanTeeShot(args TeePlanArgs) ShotPlan {
	return p.planTee(args, false)
}

// PlanTeeShotMC runs the tee search and refines the leading candidates with
// the Monte Carlo engine.
func (p *Planner) PlanTeeShotMC(args TeePlanArgs) ShotPlan {
	return p.planTee(args, true)
}

func (p *Planner) planTee(args TeePlanArgs, useMC bool) ShotPlan {
	args.RiskMode = NormalizeRiskMode(args.RiskMode)
	frame := geom.BuildFrame(args.Tee, args.Pin)
	if frame == nil {
		return p.teeFallback(args, "No course geometry available; aim straight at pin.", resolvedWind{})
	}
	prepared := course.Prepare(args.Bundle, frame)
	par := args.Par
	if par <= 0 {
		par = inferPar(frame.Pin.Y)
	}
	maxCarry := player.MaxCarry(args.Player)
	wind := resolveWind(args.Wind, frame.HeadingDeg)
	multiplier := riskMultiplier[args.RiskMode]

	hazards := prepared.Hazards
	if paths := prepared.CartPathRiskFeatures(); len(paths) > 0 {
		hazards = append(append([]course.RiskFeature{}, hazards...), paths...)
	}

	var candidates []*teeCandidate
	for _, club := range player.ClubSequence {
		stats, ok := args.Player.Clubs[club]
		if !ok || stats.CarryM <= 0 {
			continue
		}
		sigmaLong := stats.SigmaLongM * multiplier
		sigmaLat := stats.SigmaLatM * multiplier
		minDist := math.Max(p.tuning.MinDistanceM, stats.CarryM*0.9)
		maxDist := math.Min(stats.CarryM*1.1, frame.Pin.Y+40)
		for distance := minDist; distance <= maxDist; distance += p.tuning.StepMeters {
			flightTime := risk.EstimateFlightTime(distance)
			drift := risk.LateralWindOffset(wind.Cross, flightTime)
			for _, aimOffset := range p.tuning.AimOffsetsTee {
				centerX := aimOffset + drift
				hazardRisk := risk.EllipseOverlapRisk(risk.OverlapArgs{
					Center:      geom.Point{X: centerX, Y: distance},
					LongRadiusM: sigmaLong,
					LatRadiusM:  sigmaLat,
					Features:    hazards,
				})
				fairwayRisk := p.fairwayPenalty(geom.Point{X: centerX, Y: distance}, sigmaLong, sigmaLat, prepared.Fairways)
				totalRisk := clamp01(hazardRisk + fairwayRisk)
				remaining := math.Max(0, math.Hypot(frame.Pin.X-centerX, frame.Pin.Y-distance))
				viability := viabilityPenalty(remaining, par, args.GoForGreen, maxCarry)
				candidates = append(candidates, &teeCandidate{
					club:      club,
					carry:     stats.CarryM,
					distance:  distance,
					aimOffset: aimOffset,
					aimDeg:    aimMagnitudeDeg(aimOffset, distance),
					aimDir:    aimDirectionFor(aimOffset),
					risk:      totalRisk,
					combined:  clamp01(totalRisk + viability),
					remaining: remaining,
					centerX:   centerX,
					sigmaLong: sigmaLong,
					sigmaLat:  sigmaLat,
				})
			}
		}
	}
	if len(candidates) == 0 {
		return p.teeFallback(args, "No candidates available; defaulting to straight shot.", wind)
	}

	idealRemaining := teeIdealRemaining(par, args.GoForGreen)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.combined != b.combined {
			return a.combined < b.combined
		}
		diffA := math.Abs(a.remaining - idealRemaining)
		diffB := math.Abs(b.remaining - idealRemaining)
		if diffA != diffB {
			return diffA < diffB
		}
		return a.distance < b.distance
	})

	best := candidates[0]
	var mcResult *mc.Result
	if useMC {
		sampleCount := normalizeSamples(args.MCSamples)
		mcHazards := toMcHazards(hazards)
		top := p.tuning.MCTopTee
		if top > len(candidates) {
			top = len(candidates)
		}
		evaluated := candidates[:top]
		for i, candidate := range evaluated {
			result := mc.Run(mc.Args{
				Samples:    sampleCount,
				Seed:       offsetSeed(args.Seed, i),
				RangeM:     candidate.distance,
				AimOffsetM: candidate.aimOffset,
				SigmaLongM: candidate.sigmaLong,
				SigmaLatM:  candidate.sigmaLat,
				Wind:       mc.Wind{Cross: wind.Cross, Head: wind.Head},
				Hazards:    mcHazards,
				Pin:        &frame.Pin,
			})
			candidate.mc = &result
			candidate.ev = result.EV
			candidate.evOK = true
		}
		var safe []*teeCandidate
		for _, candidate := range evaluated {
			if candidate.mc.HazardRate <= p.tuning.RiskGate {
				safe = append(safe, candidate)
			}
		}
		pool := safe
		if len(pool) == 0 {
			pool = append([]*teeCandidate{}, evaluated...)
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
			return math.Abs(a.remaining-idealRemaining) < math.Abs(b.remaining-idealRemaining)
		})
		if len(pool) > 0 {
			best = adjustCandidateForHazard(pool, pool[0], p.tuning.RiskGate, args.RiskMode)
			mcResult = best.mc
		}
	}

	target := frame.FromFrame(geom.Point{X: best.aimOffset, Y: best.distance})
	var reasonParts []string
	reasonParts = append(reasonParts, fmt.Sprintf("Leaves %d m for next shot.", int(math.Round(best.remaining))))
	if best.aimDir != AimStraight {
		reasonParts = append(reasonParts, fmt.Sprintf("Aim %s to clear hazards.", strings.ToLower(string(best.aimDir))))
	}
	if math.Abs(best.centerX) > 3 {
		reasonParts = append(reasonParts, fmt.Sprintf("Expected lateral drift %.1f m.", best.centerX))
	}
	riskValue := best.combined
	if mcResult != nil {
		riskValue = mcResult.HazardRate
		reasonParts = append(reasonParts, fmt.Sprintf(
			"MC hazard %.0f%%, success %.0f%%, EV %s.",
			mcResult.HazardRate*100, mcResult.SuccessRate*100, formatEV(mcResult.EV),
		))
	} else {
		reasonParts = append(reasonParts, fmt.Sprintf("Risk approx %d%%.", int(math.Round(best.risk*100))))
	}

	plan := ShotPlan{
		Kind:         "tee",
		Club:         best.club,
		Target:       target,
		AimDeg:       best.aimDeg,
		AimDirection: best.aimDir,
		Reason:       strings.Join(reasonParts, " "),
		Risk:         riskValue,
		Landing:      Landing{DistanceM: best.distance, LateralM: best.centerX},
		Aim:          Aim{LateralM: best.aimOffset},
		Mode:         args.RiskMode,
		CarryM:       best.carry,
		CrosswindMps: wind.Cross,
		HeadwindMps:  wind.Head,
		WindDriftM:   best.centerX - best.aimOffset,
		TuningActive: args.Player.TuningActive,
	}
	if useMC {
		plan.MC = mcResult
		if mcResult != nil {
			ev := mcResult.EV
			plan.EV = &ev
		}
		plan.RiskFactors = formatMcReasons(mcResult, 2)
	}
	return plan
}

func teeIdealRemaining(par int, goForGreen bool) float64 {
	switch {
	case par <= 3:
		return 0
	case par == 4:
		return 140
	case goForGreen:
		return 0
	default:
		return 170
	}
}

func (p *Planner) teeFallback(args TeePlanArgs, reason string, wind resolvedWind) ShotPlan {
	return ShotPlan{
		Kind:         "tee",
		Club:         player.ClubSequence[len(player.ClubSequence)-1],
		Target:       args.Pin,
		AimDirection: AimStraight,
		Reason:       reason,
		Mode:         args.RiskMode,
		CrosswindMps: wind.Cross,
		HeadwindMps:  wind.Head,
		TuningActive: args.Player.TuningActive,
	}
}
