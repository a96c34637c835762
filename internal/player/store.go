package player

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/storage"
)

const dispersionKey = "caddie.dispersion.v1"

// DispersionStore persists learned dispersion snapshots through an injected
// key-value store. Reads and writes are best-effort: malformed or missing
// data reads as "no learned data" and write failures are logged, never
// propagated.
type DispersionStore struct {
	store  storage.Store
	logger logrus.FieldLogger

	minSamples int
}

// NewDispersionStore wraps the given store. minSamples <= 0 selects
// DefaultMinSamples.
func NewDispersionStore(store storage.Store, logger logrus.FieldLogger, minSamples int) *DispersionStore {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &DispersionStore{store: store, logger: logger, minSamples: minSamples}
}

// MinSamples is the learned-override threshold this store was built with.
func (s *DispersionStore) MinSamples() int {
	return s.minSamples
}

// Load returns the persisted snapshot, or nil when none exists or the stored
// payload cannot be decoded.
func (s *DispersionStore) Load(ctx context.Context) *DispersionSnapshot {
	raw, ok, err := s.store.Get(ctx, dispersionKey)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read dispersion snapshot")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var snapshot DispersionSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		s.logger.WithError(err).Warn("Discarding malformed dispersion snapshot")
		return nil
	}
	return normalizeSnapshot(&snapshot)
}

// SaveMerged folds incoming into the persisted snapshot and writes the
// result back. The merge itself is the pure MergeSnapshots; this adapter only
// does the load/save around it. Concurrent writers race last-write-wins.
func (s *DispersionStore) SaveMerged(ctx context.Context, incoming *DispersionSnapshot, now time.Time) *DispersionSnapshot {
	existing := s.Load(ctx)
	merged := MergeSnapshots(existing, normalizeSnapshot(incoming), now)
	payload, err := json.Marshal(merged)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode dispersion snapshot")
		return merged
	}
	if err := s.store.Set(ctx, dispersionKey, string(payload)); err != nil {
		s.logger.WithError(err).Warn("Failed to persist dispersion snapshot")
	}
	return merged
}

// Clear removes the persisted snapshot.
func (s *DispersionStore) Clear(ctx context.Context) {
	if err := s.store.Remove(ctx, dispersionKey); err != nil {
		s.logger.WithError(err).Warn("Failed to clear dispersion snapshot")
	}
}

// normalizeSnapshot drops entries with non-positive sigmas or counts so a
// corrupted payload cannot poison the model.
func normalizeSnapshot(snapshot *DispersionSnapshot) *DispersionSnapshot {
	if snapshot == nil {
		return nil
	}
	cleaned := &DispersionSnapshot{
		UpdatedAt: snapshot.UpdatedAt,
		Clubs:     make(map[ClubID]ClubDispersion, len(snapshot.Clubs)),
	}
	for club, d := range snapshot.Clubs {
		if d.N <= 0 || !isFinite(d.SigmaLongM) || d.SigmaLongM <= 0 || !isFinite(d.SigmaLatM) || d.SigmaLatM <= 0 {
			continue
		}
		cleaned.Clubs[club] = d
	}
	return cleaned
}
