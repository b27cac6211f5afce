package models

import (
	"time"
)

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
)

// GenerationRun is one batch of sampled images
type GenerationRun struct {
	ID              string     `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	OutputDir       string     `gorm:"not null" json:"output_dir"`
	SamplingMethod  string     `gorm:"not null" json:"sampling_method"`
	CanvasWidth     int        `gorm:"not null" json:"canvas_width"`
	CanvasHeight    int        `gorm:"not null" json:"canvas_height"`
	ImagesRequested int        `gorm:"not null" json:"images_requested"`
	ImagesFailed    int        `gorm:"default:0" json:"images_failed"`
	Status          string     `gorm:"default:'running';index" json:"status"` // "running", "completed", "cancelled"
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// ImageRecord stores the parameters behind one generated image
type ImageRecord struct {
	ID         uint          `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	RunID      string        `gorm:"type:uuid;not null;uniqueIndex:idx_run_index" json:"run_id"`
	Run        GenerationRun `gorm:"foreignKey:RunID" json:"-"`
	Index      int           `gorm:"column:sample_index;not null;uniqueIndex:idx_run_index" json:"index"`
	Filename   string        `gorm:"not null" json:"filename"`
	Parameters string        `gorm:"type:jsonb;not null" json:"parameters"` // JSON object keyed by composite parameter name
}
