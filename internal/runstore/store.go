// Package runstore persists launch history to a local SQLite database: one
// Run row per launched workload plus an append-only log of its state
// transitions. The store is optional; the launcher runs fine without it.
package runstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Run is one launched workload, local or on a fleet node.
type Run struct {
	ID        string `gorm:"primaryKey"`
	Profile   string
	Node      string `gorm:"index"`
	State     string
	ExitCode  *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition is one recorded state change of a Run.
type Transition struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"index"`
	State     string
	Detail    string
	CreatedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *gorm.DB
}

// Open creates the database (and its parent directory) if needed and
// applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}, &Transition{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Record inserts a new run in the given initial state and returns it.
func (s *Store) Record(ctx context.Context, profileName, node, state string) (*Run, error) {
	run := &Run{
		ID:      uuid.NewString(),
		Profile: profileName,
		Node:    node,
		State:   state,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// SetState updates the run's current state and appends a transition row.
func (s *Store) SetState(ctx context.Context, runID, state, detail string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Run{}).Where("id = ?", runID).Update("state", state)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("unknown run %s", runID)
		}
		return tx.Create(&Transition{RunID: runID, State: state, Detail: detail}).Error
	})
}

// Finish marks the run finished with the downstream exit code.
func (s *Store) Finish(ctx context.Context, runID string, exitCode int) error {
	result := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", runID).
		Updates(map[string]any{"state": "finished", "exit_code": exitCode})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

// History returns the most recent runs, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	query := s.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	return runs, nil
}

// Transitions returns the recorded transitions of one run, oldest first.
func (s *Store) Transitions(ctx context.Context, runID string) ([]Transition, error) {
	var transitions []Transition
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id asc").Find(&transitions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read transitions for run %s: %w", runID, err)
	}
	return transitions, nil
}
