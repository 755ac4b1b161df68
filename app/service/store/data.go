package store

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const embeddingDim = 1536

// Chunk is one embedded slice of the project documentation. Identity for
// deduplication purposes is derived from content, not from this row id.
type Chunk struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DocumentID string          `gorm:"index"`
	Page       int
	Position   int
	Content    string
	Embedding  pgvector.Vector `gorm:"type:vector(1536)"`
}

func (Chunk) TableName() string {
	return "document_chunks"
}
