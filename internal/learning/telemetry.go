package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stitts-dev/caddie-engine/internal/planner"
)

// AcceptRecord is one persisted accept batch.
type AcceptRecord struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Profile   string    `gorm:"index:idx_accept_profile_club" json:"profile"`
	ClubID    string    `gorm:"index:idx_accept_profile_club" json:"clubId"`
	Presented float64   `json:"presented"`
	Accepted  float64   `json:"accepted"`
	TS        int64     `gorm:"index" json:"ts"`
	CreatedAt time.Time `json:"createdAt"`
}

// OutcomeRecord is one persisted outcome batch.
type OutcomeRecord struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Profile   string    `gorm:"index:idx_outcome_profile_club" json:"profile"`
	ClubID    string    `gorm:"index:idx_outcome_profile_club" json:"clubId"`
	TP        float64   `json:"tp"`
	FN        float64   `json:"fn"`
	TS        int64     `gorm:"index" json:"ts"`
	CreatedAt time.Time `json:"createdAt"`
}

// TelemetryStore accumulates raw accept/outcome batches in sqlite until the
// fold job consumes them.
type TelemetryStore struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewTelemetryStore opens (or creates) the telemetry database and migrates
// its schema. Path ":memory:" gives an ephemeral store.
func NewTelemetryStore(path string, log logrus.FieldLogger) (*TelemetryStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if err := db.AutoMigrate(&AcceptRecord{}, &OutcomeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate telemetry schema: %w", err)
	}
	return &TelemetryStore{db: db, logger: log}, nil
}

// RecordAccept stores one accept batch.
func (s *TelemetryStore) RecordAccept(sample AcceptSample) error {
	ts := sample.TS
	if ts == 0 {
		ts = time.Now().UTC().UnixMilli()
	}
	record := AcceptRecord{
		ID:        uuid.NewString(),
		Profile:   string(planner.NormalizeRiskProfile(sample.Profile)),
		ClubID:    sample.ClubID,
		Presented: sample.Presented,
		Accepted:  sample.Accepted,
		TS:        ts,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record accept sample: %w", err)
	}
	return nil
}

// RecordOutcome stores one outcome batch.
func (s *TelemetryStore) RecordOutcome(sample OutcomeSample) error {
	ts := sample.TS
	if ts == 0 {
		ts = time.Now().UTC().UnixMilli()
	}
	record := OutcomeRecord{
		ID:      uuid.NewString(),
		Profile: string(planner.NormalizeRiskProfile(sample.Profile)),
		ClubID:  sample.ClubID,
		TP:      sample.TP,
		FN:      sample.FN,
		TS:      ts,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record outcome sample: %w", err)
	}
	return nil
}

// PendingSamples loads every stored batch in timestamp order.
func (s *TelemetryStore) PendingSamples() ([]AcceptSample, []OutcomeSample, error) {
	var acceptRecords []AcceptRecord
	if err := s.db.Order("ts asc").Find(&acceptRecords).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load accept samples: %w", err)
	}
	var outcomeRecords []OutcomeRecord
	if err := s.db.Order("ts asc").Find(&outcomeRecords).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load outcome samples: %w", err)
	}
	accepts := make([]AcceptSample, 0, len(acceptRecords))
	for _, record := range acceptRecords {
		accepts = append(accepts, AcceptSample{
			Profile:   planner.RiskProfile(record.Profile),
			ClubID:    record.ClubID,
			Presented: record.Presented,
			Accepted:  record.Accepted,
			TS:        record.TS,
		})
	}
	outcomes := make([]OutcomeSample, 0, len(outcomeRecords))
	for _, record := range outcomeRecords {
		outcomes = append(outcomes, OutcomeSample{
			Profile: planner.RiskProfile(record.Profile),
			ClubID:  record.ClubID,
			TP:      record.TP,
			FN:      record.FN,
			TS:      record.TS,
		})
	}
	return accepts, outcomes, nil
}

// PurgeBefore drops batches with a timestamp strictly before the cutoff.
func (s *TelemetryStore) PurgeBefore(cutoff time.Time) error {
	millis := cutoff.UTC().UnixMilli()
	if err := s.db.Where("ts < ?", millis).Delete(&AcceptRecord{}).Error; err != nil {
		return fmt.Errorf("failed to purge accept samples: %w", err)
	}
	if err := s.db.Where("ts < ?", millis).Delete(&OutcomeRecord{}).Error; err != nil {
		return fmt.Errorf("failed to purge outcome samples: %w", err)
	}
	return nil
}

// Ping checks the underlying connection.
func (s *TelemetryStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection.
func (s *TelemetryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
