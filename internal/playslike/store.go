package playslike

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/storage"
)

const tuningKey = "playslike.tuning.coeffs.v1"

const payloadVersion = 1

type storedPayload struct {
	Version   int                  `json:"version"`
	Coeffs    PersonalCoefficients `json:"coeffs"`
	Samples   int                  `json:"samples"`
	Alpha     float64              `json:"alpha"`
	UpdatedAt int64                `json:"updatedAt"`
}

// TuningStore persists personalized plays-like coefficients through an
// injected key-value store. Reads of missing or malformed data yield nil;
// write failures are logged and swallowed.
type TuningStore struct {
	store  storage.Store
	logger logrus.FieldLogger
}

// NewTuningStore wraps the given store.
func NewTuningStore(store storage.Store, logger logrus.FieldLogger) *TuningStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TuningStore{store: store, logger: logger}
}

// Load returns the persisted snapshot, or nil when none exists or the stored
// payload cannot be decoded.
func (s *TuningStore) Load(ctx context.Context) *TuningSnapshot {
	raw, ok, err := s.store.Get(ctx, tuningKey)
	if err != nil {
		s.logger.WithError(err).Warn("plays-like tuning read failed")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var payload storedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.WithError(err).Warn("plays-like tuning payload malformed")
		return nil
	}
	return normalizePayload(payload)
}

// Save persists a snapshot best-effort.
func (s *TuningStore) Save(ctx context.Context, snapshot *TuningSnapshot) {
	if snapshot == nil {
		return
	}
	payload := storedPayload{
		Version:   payloadVersion,
		Coeffs:    snapshot.PersonalCoefficients,
		Samples:   snapshot.Samples,
		Alpha:     snapshot.Alpha,
		UpdatedAt: snapshot.UpdatedAt.UnixMilli(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).Warn("plays-like tuning encode failed")
		return
	}
	if err := s.store.Set(ctx, tuningKey, string(encoded)); err != nil {
		s.logger.WithError(err).Warn("plays-like tuning write failed")
	}
}

// Clear removes any persisted snapshot.
func (s *TuningStore) Clear(ctx context.Context) {
	if err := s.store.Remove(ctx, tuningKey); err != nil {
		s.logger.WithError(err).Warn("plays-like tuning clear failed")
	}
}

// Learn fits coefficients over the shots, persists the result, and returns
// it. A nil return means no shot carried usable signal; any previous
// snapshot is left untouched in that case.
func (s *TuningStore) Learn(ctx context.Context, shots []ShotObservation, lambda float64) *TuningSnapshot {
	snapshot := LearnPersonalCoefficients(shots, lambda, time.Now().UTC())
	if snapshot == nil {
		return nil
	}
	s.Save(ctx, snapshot)
	return snapshot
}

// normalizePayload sanitizes a decoded payload field by field so a partially
// corrupt record still loads with defaults. A version mismatch discards the
// payload outright.
func normalizePayload(payload storedPayload) *TuningSnapshot {
	if payload.Version != payloadVersion {
		return nil
	}
	defaults := DefaultCoefficients()
	coeffs := payload.Coeffs
	if !isFinite(coeffs.BetaPerC) {
		coeffs.BetaPerC = defaults.BetaPerC
	}
	if !isFinite(coeffs.GammaPer100m) {
		coeffs.GammaPer100m = defaults.GammaPer100m
	}
	if !isFinite(coeffs.HeadPerMps) {
		coeffs.HeadPerMps = defaults.HeadPerMps
	}
	if !isFinite(coeffs.SlopePerM) {
		coeffs.SlopePerM = defaults.SlopePerM
	}
	samples := payload.Samples
	if samples < 0 {
		samples = 0
	}
	alpha := payload.Alpha
	if !isFinite(alpha) {
		alpha = 0
	}
	alpha = math.Min(1, math.Max(0, alpha))
	updatedAt := payload.UpdatedAt
	if updatedAt < 0 {
		updatedAt = 0
	}
	return &TuningSnapshot{
		PersonalCoefficients: coeffs,
		Samples:              samples,
		Alpha:                alpha,
		UpdatedAt:            time.UnixMilli(updatedAt).UTC(),
	}
}
