// Package scoreboard keeps a SQLite record of finished mission sessions.
package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/zurustar/mission-vm/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Outcome describes why a session ended.
type Outcome string

const (
	OutcomeIdle        Outcome = "idle"       // no threads and no armed triggers left
	OutcomeTimeout     Outcome = "timeout"    // wall-clock timeout
	OutcomeTickLimit   Outcome = "tick_limit" // --ticks reached
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeClosed      Outcome = "closed" // window closed by the player
)

// Session is one finished run of a mission.
type Session struct {
	gorm.Model
	Campaign    string `gorm:"size:127;index:idx_session_mission"`
	MissionID   int    `gorm:"index:idx_session_mission"`
	MissionName string `gorm:"size:255"`
	Score       int    `gorm:"index"`
	Target      int
	Passed      bool
	Ticks       uint64
	Duration    time.Duration
	Outcome     Outcome `gorm:"size:32"`
}

// Board records sessions.
type Board struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens or creates the database at path. An empty path uses a
// private in-memory database.
func Open(path string, log *slog.Logger) (*Board, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open scoreboard %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get scoreboard connection: %w", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Session{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate scoreboard: %w", err)
	}

	if path == "" {
		log.Debug("Using in-memory scoreboard")
	} else {
		log.Info("Using scoreboard", "path", path)
	}
	return &Board{db: db, log: log}, nil
}

// Record stores s. Passed is derived from Score and Target.
func (b *Board) Record(ctx context.Context, s *Session) error {
	s.Passed = s.Score >= s.Target
	if err := b.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	b.log.Info("Session recorded",
		"id", s.ID,
		"mission", s.MissionID,
		"score", s.Score,
		"outcome", string(s.Outcome))
	return nil
}

// Best returns the highest scoring session for a mission.
func (b *Board) Best(ctx context.Context, campaign string, missionID int) (*Session, bool, error) {
	var s Session
	err := b.db.WithContext(ctx).
		Where("campaign = ? AND mission_id = ?", campaign, missionID).
		Order("score DESC").
		Order("id ASC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query best session: %w", err)
	}
	return &s, true, nil
}

// Recent returns up to limit sessions, newest first.
func (b *Board) Recent(ctx context.Context, limit int) ([]Session, error) {
	var sessions []Session
	err := b.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return sessions, nil
}

// Close releases the database.
func (b *Board) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
