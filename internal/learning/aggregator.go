// Package learning folds usage telemetry into bounded strategy-weight
// suggestions per risk profile and club.
package learning

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stitts-dev/caddie-engine/internal/planner"
)

const (
	DefaultAlpha      = 0.2
	DefaultTarget     = 0.7
	DefaultGain       = 0.5
	DefaultMinSamples = 50

	halfSampleThreshold = 100
	maxDelta            = 0.2
	maxApplyDelta       = 0.1

	// maxEffectiveWeight caps a batch's sample weight in the effective
	// smoothing exponent so one giant batch cannot saturate the EMA.
	maxEffectiveWeight = 10000
)

// AcceptSample is a batched presented/accepted count for one profile+club.
type AcceptSample struct {
	Profile   planner.RiskProfile `json:"profile"`
	ClubID    string              `json:"clubId"`
	Presented float64             `json:"presented"`
	Accepted  float64             `json:"accepted"`
	TS        int64               `json:"ts"`
}

// OutcomeSample is a batched true-positive/false-negative count for one
// profile+club.
type OutcomeSample struct {
	Profile planner.RiskProfile `json:"profile"`
	ClubID  string              `json:"clubId"`
	TP      float64             `json:"tp"`
	FN      float64             `json:"fn"`
	TS      int64               `json:"ts"`
}

// Suggestion is one bounded strategy-weight adjustment.
type Suggestion struct {
	ClubID        string              `json:"clubId"`
	Profile       planner.RiskProfile `json:"profile"`
	AcceptEma     float64             `json:"acceptEma"`
	SuccessEma    float64             `json:"successEma"`
	SampleSize    int                 `json:"sampleSize"`
	Target        float64             `json:"target"`
	Delta         float64             `json:"delta"`
	HazardDelta   float64             `json:"hazardDelta"`
	DistanceDelta float64             `json:"distanceDelta"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// Options tune the fold. Zero values select the defaults.
type Options struct {
	Alpha           float64
	TargetPrecision float64
	Gain            float64
	MinSamples      float64
}

func (o Options) normalized() Options {
	if o.Alpha <= 0 || o.Alpha > 1 || !isFinite(o.Alpha) {
		o.Alpha = DefaultAlpha
	}
	if o.TargetPrecision <= 0 || !isFinite(o.TargetPrecision) {
		o.TargetPrecision = DefaultTarget
	}
	if o.Gain <= 0 || !isFinite(o.Gain) {
		o.Gain = DefaultGain
	}
	if o.MinSamples <= 0 || !isFinite(o.MinSamples) {
		o.MinSamples = DefaultMinSamples
	}
	return o
}

type emaState struct {
	ema     float64
	total   float64
	samples float64
}

type combinedState struct {
	accept  *emaState
	success *emaState
}

type stateKey struct {
	profile planner.RiskProfile
	clubID  string
}

// updateEma applies one batched observation with effective smoothing
// alphaEff = 1-(1-alpha)^w, so a batch of weight w moves the EMA exactly as
// far as w sequential unit updates at the same value would.
func updateEma(state *emaState, value, weight, alpha float64) *emaState {
	clampedWeight := weight
	if !isFinite(clampedWeight) || clampedWeight <= 0 {
		clampedWeight = 0
	}
	clampedValue := clamp01(value)
	if state == nil {
		return &emaState{
			ema:     clampedValue,
			total:   clampedValue * clampedWeight,
			samples: clampedWeight,
		}
	}
	effectiveWeight := math.Min(clampedWeight, maxEffectiveWeight)
	alphaEff := 1 - math.Pow(1-alpha, effectiveWeight)
	return &emaState{
		ema:     alphaEff*clampedValue + (1-alphaEff)*state.ema,
		total:   state.total + clampedValue*clampedWeight,
		samples: state.samples + clampedWeight,
	}
}

func mergeAccept(acc map[stateKey]*combinedState, sample AcceptSample, alpha float64) {
	clubID := strings.TrimSpace(sample.ClubID)
	if clubID == "" {
		return
	}
	presented := sample.Presented
	if !isFinite(presented) || presented <= 0 {
		return
	}
	accepted := sample.Accepted
	if !isFinite(accepted) || accepted < 0 {
		accepted = 0
	}
	ratio := clamp01(accepted / presented)
	key := stateKey{profile: sample.Profile, clubID: clubID}
	prev := acc[key]
	if prev == nil {
		prev = &combinedState{}
		acc[key] = prev
	}
	prev.accept = updateEma(prev.accept, ratio, presented, alpha)
}

func mergeOutcome(acc map[stateKey]*combinedState, sample OutcomeSample, alpha float64) {
	clubID := strings.TrimSpace(sample.ClubID)
	if clubID == "" {
		return
	}
	tp := sample.TP
	if !isFinite(tp) || tp < 0 {
		tp = 0
	}
	fn := sample.FN
	if !isFinite(fn) || fn < 0 {
		fn = 0
	}
	attempts := tp + fn
	if attempts <= 0 {
		return
	}
	precision := clamp01(tp / attempts)
	key := stateKey{profile: sample.Profile, clubID: clubID}
	prev := acc[key]
	if prev == nil {
		prev = &combinedState{}
		acc[key] = prev
	}
	prev.success = updateEma(prev.success, precision, attempts, alpha)
}

func toSuggestion(key stateKey, combined *combinedState, opts Options, now time.Time) *Suggestion {
	successState := combined.success
	if successState == nil || successState.samples < opts.MinSamples {
		return nil
	}
	sampleWeight := successState.samples
	if combined.accept != nil {
		sampleWeight = math.Min(successState.samples, combined.accept.samples)
	}
	sampleSize := int(math.Floor(sampleWeight))
	if float64(sampleSize) < opts.MinSamples {
		return nil
	}
	precision := clamp01(successState.ema)
	gap := opts.TargetPrecision - precision
	delta := clampRange(gap*opts.Gain, -maxDelta, maxDelta)
	if sampleSize < halfSampleThreshold {
		delta /= 2
	}
	delta = clampRange(delta, -maxApplyDelta, maxApplyDelta)
	magnitude := math.Min(maxApplyDelta, math.Abs(delta))
	sign := 1.0
	if delta < 0 {
		sign = -1
	}
	acceptEma := 0.0
	if combined.accept != nil {
		acceptEma = clamp01(combined.accept.ema)
	}
	return &Suggestion{
		ClubID:        key.clubID,
		Profile:       key.profile,
		AcceptEma:     acceptEma,
		SuccessEma:    precision,
		SampleSize:    sampleSize,
		Target:        opts.TargetPrecision,
		Delta:         delta,
		HazardDelta:   sign * magnitude * 0.5,
		DistanceDelta: -sign * magnitude * 0.5,
		UpdatedAt:     now,
	}
}

// Fold replays the samples in timestamp order and emits one suggestion per
// profile+club that has accumulated enough outcome weight. Results sort by
// sample size descending, then club id.
func Fold(accepts []AcceptSample, outcomes []OutcomeSample, opts Options) []Suggestion {
	opts = opts.normalized()
	now := time.Now().UTC()

	combined := make(map[stateKey]*combinedState)
	sortedAccepts := append([]AcceptSample{}, accepts...)
	sort.SliceStable(sortedAccepts, func(i, j int) bool { return sortedAccepts[i].TS < sortedAccepts[j].TS })
	sortedOutcomes := append([]OutcomeSample{}, outcomes...)
	sort.SliceStable(sortedOutcomes, func(i, j int) bool { return sortedOutcomes[i].TS < sortedOutcomes[j].TS })

	for _, sample := range sortedAccepts {
		mergeAccept(combined, sample, opts.Alpha)
	}
	for _, sample := range sortedOutcomes {
		mergeOutcome(combined, sample, opts.Alpha)
	}

	var suggestions []Suggestion
	for key, state := range combined {
		if suggestion := toSuggestion(key, state, opts, now); suggestion != nil {
			suggestions = append(suggestions, *suggestion)
		}
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].SampleSize != suggestions[j].SampleSize {
			return suggestions[i].SampleSize > suggestions[j].SampleSize
		}
		return suggestions[i].ClubID < suggestions[j].ClubID
	})
	return suggestions
}

// SuggestionMap indexes suggestions by profile then club.
type SuggestionMap map[planner.RiskProfile]map[string]Suggestion

// FoldToMap runs Fold and indexes the result. Every known profile is present
// in the map even when empty.
func FoldToMap(accepts []AcceptSample, outcomes []OutcomeSample, opts Options) SuggestionMap {
	out := SuggestionMap{
		planner.ProfileConservative: {},
		planner.ProfileNeutral:      {},
		planner.ProfileAggressive:   {},
	}
	for _, suggestion := range Fold(accepts, outcomes, opts) {
		profile := out[suggestion.Profile]
		if profile == nil {
			profile = make(map[string]Suggestion)
			out[suggestion.Profile] = profile
		}
		profile[suggestion.ClubID] = suggestion
	}
	return out
}

// ApplyToWeights shifts a profile's strategy weights by a suggestion's
// opposed hazard/distance deltas.
func ApplyToWeights(weights planner.StrategyWeights, suggestion Suggestion) planner.StrategyWeights {
	weights.HazardWater += suggestion.HazardDelta
	weights.HazardOB += suggestion.HazardDelta
	weights.DistanceReward += suggestion.DistanceDelta
	return weights
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

func clampRange(v, min, max float64) float64 {
	if !isFinite(v) {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
