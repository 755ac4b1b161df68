package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/client/embedding"
	"github.com/yizucodes/interview-agent/app/config"
	"github.com/yizucodes/interview-agent/app/service/store"

	"github.com/pgvector/pgvector-go"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
	embedBatch   = 64
)

type Service struct {
	cfg      *config.Config
	store    *store.Service
	embedder *embedding.Client
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:      do.MustInvoke[*config.Config](di),
		store:    do.MustInvoke[*store.Service](di),
		embedder: do.MustInvoke[*embedding.Client](di),
	}, nil
}

// Run loads a plain-text document, splits it into overlapping chunks, embeds
// them and replaces the stored corpus for that document.
func (s *Service) Run(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	documentID := filepath.Base(path)

	parts := SplitText(string(data), chunkSize, chunkOverlap)
	slog.Info("Split document",
		"document", documentID,
		"chunks", len(parts))

	chunks := make([]store.Chunk, 0, len(parts))

	for start := 0; start < len(parts); start += embedBatch {
		end := start + embedBatch
		if end > len(parts) {
			end = len(parts)
		}

		batch := parts[start:end]

		vectors, err := s.embedder.Embed(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}

		for i, content := range batch {
			chunks = append(chunks, store.Chunk{
				ID:         uuid.New(),
				DocumentID: documentID,
				Position:   start + i,
				Content:    content,
				Embedding:  pgvector.NewVector(vectors[i]),
			})
		}
	}

	if err = s.store.ReplaceDocument(ctx, documentID, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	slog.Info("Ingestion complete",
		"document", documentID,
		"chunks", len(chunks))

	return nil
}
