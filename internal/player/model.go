// Package player derives the per-club capability model used by the shot
// planner: carry distances and dispersion sigmas from a base bag, optionally
// overridden by learned per-club dispersion once enough samples exist.
package player

import (
	"math"
	"time"
)

// ClubID identifies a club in the bag.
type ClubID string

const (
	Driver ClubID = "driver"
	Wood3  ClubID = "wood3"
	Wood5  ClubID = "wood5"
	Hybrid ClubID = "hybrid"
	Iron4  ClubID = "iron4"
	Iron5  ClubID = "iron5"
	Iron6  ClubID = "iron6"
	Iron7  ClubID = "iron7"
	Iron8  ClubID = "iron8"
	Iron9  ClubID = "iron9"
	PW     ClubID = "pw"
	GW     ClubID = "gw"
	SW     ClubID = "sw"
)

// ClubSequence orders the bag from longest to shortest club. Planner loops
// iterate in this order so candidate generation is deterministic.
var ClubSequence = []ClubID{
	Driver, Wood3, Wood5, Hybrid,
	Iron4, Iron5, Iron6, Iron7, Iron8, Iron9,
	PW, GW, SW,
}

// defaultCarryM is the un-personalized carry table.
var defaultCarryM = map[ClubID]float64{
	Driver: 235,
	Wood3:  215,
	Wood5:  200,
	Hybrid: 190,
	Iron4:  180,
	Iron5:  170,
	Iron6:  160,
	Iron7:  150,
	Iron8:  140,
	Iron9:  130,
	PW:     115,
	GW:     105,
	SW:     90,
}

// Dispersion floors in meters. Defaults never go below these; learned values
// with enough samples may.
const (
	MinSigmaLongM = 6.0
	MinSigmaLatM  = 3.0
)

// DefaultMinSamples is the learned-dispersion sample threshold below which
// the default sigma model is kept.
const DefaultMinSamples = 6

// ClubStats is the capability model for one club.
type ClubStats struct {
	CarryM     float64 `json:"carry_m"`
	SigmaLongM float64 `json:"sigma_long_m"`
	SigmaLatM  float64 `json:"sigma_lat_m"`
}

// Model is the full per-club capability model. It is built fresh per planning
// call and read-only afterwards, so concurrent planners may share one.
type Model struct {
	Clubs        map[ClubID]ClubStats `json:"clubs"`
	TuningActive bool                 `json:"tuningActive"`
}

// Bag maps clubs to carry overrides in meters. Missing or non-positive
// entries fall back to the default carry table.
type Bag map[ClubID]float64

// ClubDispersion is a learned dispersion estimate for one club.
type ClubDispersion struct {
	SigmaLongM float64   `json:"sigma_long_m"`
	SigmaLatM  float64   `json:"sigma_lat_m"`
	N          int       `json:"n"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// DispersionSnapshot is the persisted learned-dispersion state.
type DispersionSnapshot struct {
	UpdatedAt time.Time                 `json:"updatedAt"`
	Clubs     map[ClubID]ClubDispersion `json:"clubs"`
}

// DefaultSigmaLong is the default longitudinal dispersion for a carry.
func DefaultSigmaLong(carryM float64) float64 {
	return math.Max(MinSigmaLongM, carryM*0.14)
}

// DefaultSigmaLat is the default lateral dispersion for a carry.
func DefaultSigmaLat(carryM float64) float64 {
	return math.Max(MinSigmaLatM, carryM*0.09)
}

// BuildModel assembles the capability model from a bag and an optional
// learned dispersion snapshot. A learned entry overrides the default sigmas
// only when it has at least minSamples samples and positive sigmas;
// minSamples <= 0 selects DefaultMinSamples. TuningActive reports whether any
// club deviates from the un-personalized defaults.
func BuildModel(bag Bag, learned *DispersionSnapshot, minSamples int) *Model {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	model := &Model{Clubs: make(map[ClubID]ClubStats, len(ClubSequence))}
	for _, club := range ClubSequence {
		defaultCarry := defaultCarryM[club]
		carry := defaultCarry
		if override, ok := bag[club]; ok && isFinite(override) && override > 0 {
			carry = override
		}
		stats := ClubStats{
			CarryM:     carry,
			SigmaLongM: DefaultSigmaLong(carry),
			SigmaLatM:  DefaultSigmaLat(carry),
		}
		if learned != nil {
			if d, ok := learned.Clubs[club]; ok && d.N >= minSamples && d.SigmaLongM > 0 && d.SigmaLatM > 0 {
				stats.SigmaLongM = d.SigmaLongM
				stats.SigmaLatM = d.SigmaLatM
			}
		}
		if carry != defaultCarry ||
			stats.SigmaLongM != DefaultSigmaLong(defaultCarry) ||
			stats.SigmaLatM != DefaultSigmaLat(defaultCarry) {
			model.TuningActive = true
		}
		model.Clubs[club] = stats
	}
	return model
}

// MergeDispersion combines two dispersion samples for the same club. Each
// merged sigma is the sample-size-weighted RMS of the inputs, which always
// lies between the smaller and larger input sigma; sample counts add. A
// sample with n <= 0 contributes nothing and the other side wins unchanged.
func MergeDispersion(a, b ClubDispersion) ClubDispersion {
	if a.N <= 0 {
		return b
	}
	if b.N <= 0 {
		return a
	}
	na := float64(a.N)
	nb := float64(b.N)
	merged := ClubDispersion{
		SigmaLongM: math.Sqrt((na*a.SigmaLongM*a.SigmaLongM + nb*b.SigmaLongM*b.SigmaLongM) / (na + nb)),
		SigmaLatM:  math.Sqrt((na*a.SigmaLatM*a.SigmaLatM + nb*b.SigmaLatM*b.SigmaLatM) / (na + nb)),
		N:          a.N + b.N,
	}
	if b.UpdatedAt.After(a.UpdatedAt) {
		merged.UpdatedAt = b.UpdatedAt
	} else {
		merged.UpdatedAt = a.UpdatedAt
	}
	return merged
}

// MergeSnapshots folds an incoming snapshot into an existing one club by
// club. Both inputs are left untouched.
func MergeSnapshots(existing, incoming *DispersionSnapshot, now time.Time) *DispersionSnapshot {
	merged := &DispersionSnapshot{
		UpdatedAt: now,
		Clubs:     make(map[ClubID]ClubDispersion),
	}
	if existing != nil {
		for club, d := range existing.Clubs {
			merged.Clubs[club] = d
		}
	}
	if incoming != nil {
		for club, d := range incoming.Clubs {
			if prev, ok := merged.Clubs[club]; ok {
				merged.Clubs[club] = MergeDispersion(prev, d)
			} else {
				merged.Clubs[club] = d
			}
		}
	}
	return merged
}

// SelectClubForDistance picks the club whose carry best matches the target
// distance, preferring a club that reaches the distance when the difference
// is within 2 m of the best so far.
func SelectClubForDistance(distanceM float64, model *Model) ClubID {
	best := ClubSequence[len(ClubSequence)-1]
	bestDiff := math.Inf(1)
	for _, club := range ClubSequence {
		stats, ok := model.Clubs[club]
		if !ok {
			continue
		}
		diff := math.Abs(stats.CarryM - distanceM)
		if diff < bestDiff {
			best = club
			bestDiff = diff
		}
		if stats.CarryM >= distanceM && diff <= bestDiff+2 {
			best = club
			bestDiff = diff
		}
	}
	return best
}

// MaxCarry returns the longest carry in the model, 0 for an empty model.
func MaxCarry(model *Model) float64 {
	max := 0.0
	for _, club := range ClubSequence {
		if stats, ok := model.Clubs[club]; ok && stats.CarryM > max {
			max = stats.CarryM
		}
	}
	return max
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
