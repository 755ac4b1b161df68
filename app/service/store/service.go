package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrStoreUnavailable means the documentation corpus has not been ingested
// yet. Retrieval surfaces it to the conversational engine as text instead of
// failing the session.
var ErrStoreUnavailable = errors.New("document store unavailable, run ingest first")

type Service struct {
	cfg *config.Config
	db  *gorm.DB
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Database)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err = db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	if err = db.AutoMigrate(&Chunk{}); err != nil {
		return nil, fmt.Errorf("failed to migrate document_chunks: %w", err)
	}

	return &Service{
		cfg: cfg,
		db:  db,
	}, nil
}

// SearchSimilar returns up to limit chunks ordered by cosine distance to the
// query embedding. The corpus is read-only at query time, so concurrent
// searches need no locking.
func (s *Service) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]Chunk, error) {
	if len(embedding) != embeddingDim {
		return nil, fmt.Errorf("expected %d-dimensional embedding, got %d", embeddingDim, len(embedding))
	}

	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var chunks []Chunk

	err := s.db.WithContext(ctx).
		Order(gorm.Expr("embedding <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	return chunks, nil
}

// ReplaceDocument atomically swaps all chunks of a document for a fresh set.
func (s *Service) ReplaceDocument(ctx context.Context, documentID string, chunks []Chunk) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&Chunk{}).Error; err != nil {
			return fmt.Errorf("failed to delete stale chunks: %w", err)
		}

		if len(chunks) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}

		return nil
	})
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Chunk{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	return count, nil
}

func (s *Service) ready(ctx context.Context) error {
	count, err := s.Count(ctx)
	if err != nil {
		return ErrStoreUnavailable
	}

	if count == 0 {
		return ErrStoreUnavailable
	}

	return nil
}
