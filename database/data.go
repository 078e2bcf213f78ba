package database

import (
	"encoding/json"
	"fmt"
	"github.com/jayjOnly/VA-Validator/models"
	"gorm.io/datatypes"
	"time"
)

// RunDB defines a stored validation run.
type RunDB struct {
	ID         uint           `gorm:"primaryKey"`
	RunID      string         `gorm:"uniqueIndex;size:36"`
	Source     string         `gorm:"source"`
	Workers    int            `gorm:"workers"`
	StartedAt  time.Time      `gorm:"index"`
	DurationMS int64          `gorm:"duration_ms"`
	Total      int            `gorm:"total"`
	Summary    datatypes.JSON `gorm:"summary"`
	Records    []RecordDB     `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

// RecordDB defines one stored validation record.
type RecordDB struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index;size:36"`
	PluginID   string `gorm:"index"`
	Host       string `gorm:"host"`
	Port       int    `gorm:"port"`
	Status     string `gorm:"index"`
	Detail     string `gorm:"detail"`
	DurationMS int64  `gorm:"duration_ms"`
}

// Run is a validation run as handed to and returned by the store.
type Run struct {
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	Workers   int             `json:"workers"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Summary   models.Summary  `json:"summary"`
	Records   []models.Record `json:"records,omitempty"`
}

// NewRunDB converts a Run into its stored form.
func NewRunDB(r Run) (*RunDB, error) {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	db := &RunDB{
		RunID:      r.RunID,
		Source:     r.Source,
		Workers:    r.Workers,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Total:      r.Summary.Total,
		Summary:    datatypes.JSON(summary),
		Records:    make([]RecordDB, 0, len(r.Records)),
	}
	for _, rec := range r.Records {
		db.Records = append(db.Records, RecordDB{
			RunID:      r.RunID,
			PluginID:   rec.PluginID,
			Host:       rec.Host,
			Port:       rec.Port,
			Status:     string(rec.Status),
			Detail:     rec.Detail,
			DurationMS: rec.Duration.Milliseconds(),
		})
	}
	return db, nil
}

// Run converts the stored form back. Records are included when loaded.
func (db *RunDB) Run() (Run, error) {
	r := Run{
		RunID:     db.RunID,
		Source:    db.Source,
		Workers:   db.Workers,
		StartedAt: db.StartedAt,
		Duration:  time.Duration(db.DurationMS) * time.Millisecond,
	}
	if len(db.Summary) > 0 {
		if err := json.Unmarshal(db.Summary, &r.Summary); err != nil {
			return Run{}, fmt.Errorf("decoding summary of run %s: %w", db.RunID, err)
		}
	}

	for _, rec := range db.Records {
		r.Records = append(r.Records, models.Record{
			PluginID: rec.PluginID,
			Host:     rec.Host,
			Port:     rec.Port,
			Status:   models.Status(rec.Status),
			Detail:   rec.Detail,
			Duration: time.Duration(rec.DurationMS) * time.Millisecond,
		})
	}
	return r, nil
}
