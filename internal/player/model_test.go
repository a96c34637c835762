package player

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildModelDefaults(t *testing.T) {
	model := BuildModel(nil, nil, 0)
	require.Len(t, model.Clubs, len(ClubSequence))
	assert.False(t, model.TuningActive)

	driver := model.Clubs[Driver]
	assert.Equal(t, 235.0, driver.CarryM)
	assert.InDelta(t, 235*0.14, driver.SigmaLongM, 1e-9)
	assert.InDelta(t, 235*0.09, driver.SigmaLatM, 1e-9)

	sw := model.Clubs[SW]
	assert.Equal(t, 90.0, sw.CarryM)
	assert.InDelta(t, 90*0.14, sw.SigmaLongM, 1e-9)
	assert.InDelta(t, 90*0.09, sw.SigmaLatM, 1e-9)
}

func TestBuildModelBagOverrides(t *testing.T) {
	model := BuildModel(Bag{Driver: 250, Iron7: -10, PW: math.NaN()}, nil, 0)
	assert.True(t, model.TuningActive)
	assert.Equal(t, 250.0, model.Clubs[Driver].CarryM)
	// Invalid overrides fall back to defaults.
	assert.Equal(t, 150.0, model.Clubs[Iron7].CarryM)
	assert.Equal(t, 115.0, model.Clubs[PW].CarryM)
}

func TestBuildModelLearnedDispersionGating(t *testing.T) {
	learned := &DispersionSnapshot{Clubs: map[ClubID]ClubDispersion{
		Driver: {SigmaLongM: 25, SigmaLatM: 12, N: 20},
		Iron7:  {SigmaLongM: 10, SigmaLatM: 5, N: 2}, // below min samples
	}}

	model := BuildModel(nil, learned, 6)
	assert.True(t, model.TuningActive)
	assert.Equal(t, 25.0, model.Clubs[Driver].SigmaLongM)
	assert.Equal(t, 12.0, model.Clubs[Driver].SigmaLatM)
	// Thin samples keep the default sigma model.
	assert.InDelta(t, DefaultSigmaLong(150), model.Clubs[Iron7].SigmaLongM, 1e-9)
}

func TestMergeDispersionWeightedRMS(t *testing.T) {
	a := ClubDispersion{SigmaLongM: 10, SigmaLatM: 4, N: 10}
	b := ClubDispersion{SigmaLongM: 20, SigmaLatM: 8, N: 30}

	merged := MergeDispersion(a, b)
	assert.Equal(t, 40, merged.N)
	// Weighted RMS lies between the inputs, pulled toward the larger sample.
	assert.Greater(t, merged.SigmaLongM, 10.0)
	assert.Less(t, merged.SigmaLongM, 20.0)
	expected := math.Sqrt((10*100 + 30*400) / 40.0)
	assert.InDelta(t, expected, merged.SigmaLongM, 1e-9)
}

func TestMergeDispersionZeroSampleSides(t *testing.T) {
	a := ClubDispersion{SigmaLongM: 10, SigmaLatM: 4, N: 10}
	empty := ClubDispersion{}

	assert.Equal(t, a, MergeDispersion(a, empty))
	assert.Equal(t, a, MergeDispersion(empty, a))
}

func TestMergeDispersionKeepsNewestTimestamp(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := ClubDispersion{SigmaLongM: 10, SigmaLatM: 4, N: 5, UpdatedAt: older}
	b := ClubDispersion{SigmaLongM: 12, SigmaLatM: 5, N: 5, UpdatedAt: newer}

	assert.Equal(t, newer, MergeDispersion(a, b).UpdatedAt)
	assert.Equal(t, newer, MergeDispersion(b, a).UpdatedAt)
}

func TestMergeSnapshots(t *testing.T) {
	now := time.Now().UTC()
	existing := &DispersionSnapshot{Clubs: map[ClubID]ClubDispersion{
		Driver: {SigmaLongM: 20, SigmaLatM: 9, N: 10},
	}}
	incoming := &DispersionSnapshot{Clubs: map[ClubID]ClubDispersion{
		Driver: {SigmaLongM: 24, SigmaLatM: 11, N: 10},
		Iron7:  {SigmaLongM: 9, SigmaLatM: 4, N: 8},
	}}

	merged := MergeSnapshots(existing, incoming, now)
	assert.Equal(t, now, merged.UpdatedAt)
	assert.Equal(t, 20, merged.Clubs[Driver].N)
	assert.Equal(t, 8, merged.Clubs[Iron7].N)

	// Inputs untouched.
	assert.Equal(t, 10, existing.Clubs[Driver].N)

	nilMerged := MergeSnapshots(nil, nil, now)
	assert.Empty(t, nilMerged.Clubs)
}

func TestSelectClubForDistance(t *testing.T) {
	model := BuildModel(nil, nil, 0)

	assert.Equal(t, Iron7, SelectClubForDistance(150, model))
	assert.Equal(t, Driver, SelectClubForDistance(260, model))
	assert.Equal(t, SW, SelectClubForDistance(40, model))

	// Between two clubs, prefer the one that reaches the distance.
	club := SelectClubForDistance(155, model)
	stats := model.Clubs[club]
	assert.GreaterOrEqual(t, stats.CarryM, 155.0)
}

func TestMaxCarry(t *testing.T) {
	model := BuildModel(Bag{Driver: 260}, nil, 0)
	assert.Equal(t, 260.0, MaxCarry(model))
	assert.Equal(t, 0.0, MaxCarry(&Model{Clubs: map[ClubID]ClubStats{}}))
}
