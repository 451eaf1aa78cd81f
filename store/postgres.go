package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"spiritual-shorts-pipeline/types"
)

// ContentRecord is the content table row
type ContentRecord struct {
	ID          string    `gorm:"primaryKey;size:26"`
	Title       string    `gorm:"size:255"`
	Theme       string    `gorm:"size:255;index"`
	ContentType string    `gorm:"size:32"`
	Source      string    `gorm:"size:16"`
	Status      string    `gorm:"size:16;index"`
	Score       float64   `gorm:"not null"`
	ExternalID  string    `gorm:"size:64"`
	Data        string    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"index"`
}

func (ContentRecord) TableName() string {
	return "content_pieces"
}

// StatsRecord is the single cycle stats row
type StatsRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Data      string `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (StatsRecord) TableName() string {
	return "cycle_stats"
}

// PostgresStore implements Store with GORM on Postgres
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects and migrates the schema
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying SQL DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&ContentRecord{}, &StatsRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Println("[store] Postgres connected")
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) AppendContent(ctx context.Context, piece *types.ContentPiece) error {
	data, err := json.Marshal(piece)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	rec := ContentRecord{
		ID:          piece.ID,
		Title:       piece.Title,
		Theme:       piece.Theme,
		ContentType: string(piece.ContentType),
		Source:      string(piece.Source),
		Status:      string(piece.Status),
		Score:       piece.AuthenticityScore,
		ExternalID:  piece.ExternalID,
		Data:        string(data),
		CreatedAt:   piece.CreatedAt,
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "score", "external_id", "data"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListContent(ctx context.Context, limit int) ([]types.ContentPiece, error) {
	var recs []ContentRecord
	q := p.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}

	pieces := make([]types.ContentPiece, 0, len(recs))
	for _, rec := range recs {
		var piece types.ContentPiece
		if err := json.Unmarshal([]byte(rec.Data), &piece); err != nil {
			return nil, fmt.Errorf("decode content %s: %w", rec.ID, err)
		}
		pieces = append(pieces, piece)
	}
	return pieces, nil
}

func (p *PostgresStore) SaveStats(ctx context.Context, stats types.CycleStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	rec := StatsRecord{ID: 1, Data: string(data), UpdatedAt: time.Now().UTC()}
	if err := p.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (p *PostgresStore) LoadStats(ctx context.Context) (types.CycleStats, error) {
	var stats types.CycleStats
	var rec StatsRecord
	err := p.db.WithContext(ctx).First(&rec, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("load stats: %w", err)
	}
	if err := json.Unmarshal([]byte(rec.Data), &stats); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
