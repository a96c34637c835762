package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service folds accumulated telemetry into the suggestion store, on demand
// and on a cron schedule.
type Service struct {
	telemetry *TelemetryStore
	store     *Store
	opts      Options
	retention time.Duration
	logger    logrus.FieldLogger
	cron      *cron.Cron
}

// NewService wires the fold pipeline. retention <= 0 keeps telemetry
// forever.
func NewService(telemetry *TelemetryStore, store *Store, opts Options, retention time.Duration, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		telemetry: telemetry,
		store:     store,
		opts:      opts,
		retention: retention,
		logger:    log,
	}
}

// FoldNow replays all retained telemetry and replaces the stored suggestion
// map with the result.
func (s *Service) FoldNow(ctx context.Context) (SuggestionMap, error) {
	accepts, outcomes, err := s.telemetry.PendingSamples()
	if err != nil {
		return nil, fmt.Errorf("failed to load telemetry for fold: %w", err)
	}
	suggestions := FoldToMap(accepts, outcomes, s.opts)
	s.store.SetState(ctx, State{Version: stateVersion, Suggestions: suggestions})
	total := 0
	for _, clubs := range suggestions {
		total += len(clubs)
	}
	s.logger.WithFields(logrus.Fields{
		"accept_samples":  len(accepts),
		"outcome_samples": len(outcomes),
		"suggestions":     total,
	}).Info("Folded learning telemetry")
	if s.retention > 0 {
		if err := s.telemetry.PurgeBefore(time.Now().UTC().Add(-s.retention)); err != nil {
			s.logger.WithError(err).Warn("telemetry purge failed")
		}
	}
	return suggestions, nil
}

// StartSchedule runs FoldNow on the given cron spec until Stop is called.
func (s *Service) StartSchedule(spec string) error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.FoldNow(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled learning fold failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule learning fold: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.WithField("spec", spec).Info("Learning fold schedule started")
	return nil
}

// Stop halts the cron schedule, waiting for a running fold to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}
