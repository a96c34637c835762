package playslike

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/caddie-engine/internal/storage"
)

func newTestTuningStore() *TuningStore {
	return NewTuningStore(storage.NewMemoryStore(), nil)
}

func TestTuningStoreLoadEmpty(t *testing.T) {
	store := newTestTuningStore()
	assert.Nil(t, store.Load(context.Background()))
}

func TestTuningStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestTuningStore()

	saved := &TuningSnapshot{
		PersonalCoefficients: PersonalCoefficients{
			BetaPerC:     0.002,
			GammaPer100m: 0.006,
			HeadPerMps:   0.018,
			SlopePerM:    1.05,
		},
		Samples:   42,
		Alpha:     0.42,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	store.Save(ctx, saved)

	loaded := store.Load(ctx)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.PersonalCoefficients, loaded.PersonalCoefficients)
	assert.Equal(t, 42, loaded.Samples)
	assert.InDelta(t, 0.42, loaded.Alpha, 1e-9)
	assert.True(t, saved.UpdatedAt.Equal(loaded.UpdatedAt))
}

func TestTuningStoreMalformedPayload(t *testing.T) {
	ctx := context.Background()
	backing := storage.NewMemoryStore()
	store := NewTuningStore(backing, nil)

	require.NoError(t, backing.Set(ctx, "playslike.tuning.coeffs.v1", "{not json"))
	assert.Nil(t, store.Load(ctx))
}

func TestTuningStoreVersionMismatchDiscards(t *testing.T) {
	ctx := context.Background()
	backing := storage.NewMemoryStore()
	store := NewTuningStore(backing, nil)

	payload := `{"version":99,"coeffs":{"betaPerC":0.002,"gammaPer100m":0.006,"head_per_mps":0.02,"slope_per_m":1},"samples":10,"alpha":0.1,"updatedAt":1000}`
	require.NoError(t, backing.Set(ctx, "playslike.tuning.coeffs.v1", payload))
	assert.Nil(t, store.Load(ctx))
}

func TestTuningStoreClear(t *testing.T) {
	ctx := context.Background()
	store := newTestTuningStore()

	store.Save(ctx, &TuningSnapshot{PersonalCoefficients: DefaultCoefficients(), Samples: 1, Alpha: 0.01, UpdatedAt: time.Now()})
	require.NotNil(t, store.Load(ctx))

	store.Clear(ctx)
	assert.Nil(t, store.Load(ctx))
}

func TestTuningStoreLearnPersists(t *testing.T) {
	ctx := context.Background()
	store := newTestTuningStore()

	truth := PersonalCoefficients{
		BetaPerC:     DefaultBetaPerC,
		GammaPer100m: DefaultGammaPer100m,
		HeadPerMps:   0.022,
		SlopePerM:    1.0,
	}
	snapshot := store.Learn(ctx, syntheticShots(150, truth), DefaultLambda)
	require.NotNil(t, snapshot)
	assert.Equal(t, 150, snapshot.Samples)
	assert.Equal(t, 1.0, snapshot.Alpha)

	loaded := store.Load(ctx)
	require.NotNil(t, loaded)
	assert.InDelta(t, snapshot.HeadPerMps, loaded.HeadPerMps, 1e-9)
}

func TestTuningStoreLearnNoSignalKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := newTestTuningStore()

	previous := &TuningSnapshot{PersonalCoefficients: DefaultCoefficients(), Samples: 5, Alpha: 0.05, UpdatedAt: time.Now().UTC()}
	store.Save(ctx, previous)

	result := store.Learn(ctx, []ShotObservation{{BaseDistanceM: 150, ActualCarryM: 149}}, DefaultLambda)
	assert.Nil(t, result)

	loaded := store.Load(ctx)
	require.NotNil(t, loaded)
	assert.Equal(t, 5, loaded.Samples)
}

func TestNormalizePayloadSanitizes(t *testing.T) {
	snapshot := normalizePayload(storedPayload{
		Version: payloadVersion,
		Coeffs: PersonalCoefficients{
			BetaPerC:     math.NaN(),
			GammaPer100m: 0.007,
			HeadPerMps:   math.Inf(1),
			SlopePerM:    1.2,
		},
		Samples:   -3,
		Alpha:     4,
		UpdatedAt: -100,
	})
	require.NotNil(t, snapshot)
	assert.Equal(t, DefaultBetaPerC, snapshot.BetaPerC)
	assert.Equal(t, 0.007, snapshot.GammaPer100m)
	assert.Equal(t, DefaultHeadPerMps, snapshot.HeadPerMps)
	assert.Equal(t, 1.2, snapshot.SlopePerM)
	assert.Equal(t, 0, snapshot.Samples)
	assert.Equal(t, 1.0, snapshot.Alpha)
	assert.Equal(t, time.UnixMilli(0).UTC(), snapshot.UpdatedAt)
}
