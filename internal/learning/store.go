package learning

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/internal/storage"
)

const (
	learningKey  = "caddie.learning.v1"
	stateVersion = 1
)

// State is the persisted suggestion map.
type State struct {
	Version     int           `json:"version"`
	Suggestions SuggestionMap `json:"suggestions"`
}

func emptyState() State {
	return State{Version: stateVersion, Suggestions: SuggestionMap{}}
}

// Store persists folded suggestions through an injected key-value store.
// Any read problem, including a version mismatch, yields the empty state.
type Store struct {
	store  storage.Store
	logger logrus.FieldLogger
}

// NewStore wraps the given store.
func NewStore(store storage.Store, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{store: store, logger: logger}
}

// GetState returns the persisted suggestion state, or the empty state.
func (s *Store) GetState(ctx context.Context) State {
	raw, ok, err := s.store.Get(ctx, learningKey)
	if err != nil {
		s.logger.WithError(err).Warn("learning state read failed")
		return emptyState()
	}
	if !ok || raw == "" {
		return emptyState()
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.WithError(err).Warn("learning state malformed")
		return emptyState()
	}
	return normalizeState(state)
}

// SetState persists the given state best-effort.
func (s *Store) SetState(ctx context.Context, state State) {
	normalized := normalizeState(state)
	encoded, err := json.Marshal(normalized)
	if err != nil {
		s.logger.WithError(err).Warn("learning state encode failed")
		return
	}
	if err := s.store.Set(ctx, learningKey, string(encoded)); err != nil {
		s.logger.WithError(err).Warn("learning state write failed")
	}
}

// Update applies fn to the current state and persists the result.
func (s *Store) Update(ctx context.Context, fn func(State) State) State {
	next := fn(s.GetState(ctx))
	s.SetState(ctx, next)
	return next
}

// SuggestionFor returns the stored suggestion for a profile and club.
func (s *Store) SuggestionFor(ctx context.Context, profile planner.RiskProfile, clubID string) (Suggestion, bool) {
	state := s.GetState(ctx)
	clubs, ok := state.Suggestions[planner.NormalizeRiskProfile(profile)]
	if !ok {
		return Suggestion{}, false
	}
	suggestion, ok := clubs[clubID]
	return suggestion, ok
}

// normalizeState sanitizes a decoded state entry by entry. A version
// mismatch discards everything; a corrupt entry reads as zeroed deltas.
func normalizeState(state State) State {
	if state.Version != stateVersion {
		return emptyState()
	}
	normalized := emptyState()
	for profile, clubs := range state.Suggestions {
		if len(clubs) == 0 {
			continue
		}
		cleaned := make(map[string]Suggestion, len(clubs))
		for clubID, entry := range clubs {
			entry.ClubID = clubID
			entry.Profile = planner.NormalizeRiskProfile(profile)
			entry.HazardDelta = finiteOr(entry.HazardDelta, 0)
			entry.DistanceDelta = finiteOr(entry.DistanceDelta, 0)
			entry.Delta = finiteOr(entry.Delta, 0)
			entry.AcceptEma = finiteOr(entry.AcceptEma, 0)
			entry.SuccessEma = finiteOr(entry.SuccessEma, 0)
			entry.Target = finiteOr(entry.Target, DefaultTarget)
			if entry.SampleSize < 0 {
				entry.SampleSize = 0
			}
			if entry.UpdatedAt.IsZero() {
				entry.UpdatedAt = time.Now().UTC()
			}
			cleaned[clubID] = entry
		}
		normalized.Suggestions[planner.NormalizeRiskProfile(profile)] = cleaned
	}
	return normalized
}

func finiteOr(v, fallback float64) float64 {
	if !isFinite(v) {
		return fallback
	}
	return v
}
