package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/models"
	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens a Postgres connection
func Connect(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the run and image tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.GenerationRun{}, &models.ImageRecord{})
}

// ParameterStore records runs and per-image parameters
type ParameterStore struct {
	db    *gorm.DB
	runID string
}

// NewParameterStore logs image parameters against runID
func NewParameterStore(db *gorm.DB, runID string) *ParameterStore {
	return &ParameterStore{db: db, runID: runID}
}

// StartRun inserts the run row
func (s *ParameterStore) StartRun(ctx context.Context, run *models.GenerationRun) error {
	run.ID = s.runID
	run.Status = models.RunStatusRunning
	return s.db.WithContext(ctx).Create(run).Error
}

// FinishRun stores the final status and failure count
func (s *ParameterStore) FinishRun(ctx context.Context, status string, failed int) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.GenerationRun{}).
		Where("id = ?", s.runID).
		Updates(map[string]interface{}{
			"status":        status,
			"images_failed": failed,
			"finished_at":   &now,
		}).Error
}

// LogParameters inserts one image row
func (s *ParameterStore) LogParameters(ctx context.Context, index int, filename string, ps schema.ParameterSet) error {
	raw, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}
	record := models.ImageRecord{
		RunID:      s.runID,
		Index:      index,
		Filename:   filename,
		Parameters: string(raw),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("storing parameters for %s: %w", filename, err)
	}
	return nil
}

// ImagesForRun lists the stored images of a run in index order
func (s *ParameterStore) ImagesForRun(ctx context.Context) ([]models.ImageRecord, error) {
	var records []models.ImageRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", s.runID).Order("sample_index").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
