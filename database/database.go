package database

import (
	"errors"
	"fmt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"os"
	"path/filepath"
)

// ErrRunNotFound is returned when no run matches the requested id.
var ErrRunNotFound = errors.New("run not found")

// DB defines the database instance containing the
// connection to the SQLite type database.
type DB struct {
	conn *gorm.DB
}

// New returns a new *DB instance stored at path.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	if err = db.Migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate migrates the current database structures.
func (db *DB) Migrate() error {
	return db.conn.AutoMigrate(&RunDB{}, &RecordDB{})
}

// SaveRun saves a run along with its records.
func (db *DB) SaveRun(r Run) error {
	data, err := NewRunDB(r)
	if err != nil {
		return err
	}
	if err := db.conn.Create(data).Error; err != nil {
		return fmt.Errorf("saving run %s: %w", r.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs without their records.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	q := db.conn.Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []RunDB
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(rows))
	for i := range rows {
		r, err := rows[i].Run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// FetchRun fetches a run with its records.
func (db *DB) FetchRun(runID string) (Run, error) {
	var row RunDB
	err := db.conn.
		Preload("Records", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Where("run_id = ?", runID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	return row.Run()
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
