package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/patrickmn/go-cache"
	"github.com/samber/do"
	"github.com/yizucodes/interview-agent/app/client/embedding"
	"github.com/yizucodes/interview-agent/app/config"
	"github.com/yizucodes/interview-agent/app/service/store"
)

const (
	// overFetchFactor compensates for duplicates removed after the raw
	// similarity search. Fixed heuristic, not adaptive.
	overFetchFactor = 1.5

	// fingerprintLength covers the chunk-boundary overlap produced by the
	// ingestion splitter.
	fingerprintLength = 150

	chunkSeparator = "\n\n---\n\n"

	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// ErrNoResults distinguishes "nothing matched" from a found-but-empty chunk.
var ErrNoResults = errors.New("no matching documentation found")

type chunkSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]store.Chunk, error)
}

type queryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type Service struct {
	cfg      *config.Config
	store    chunkSearcher
	embedder queryEmbedder
	cache    *cache.Cache
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:      do.MustInvoke[*config.Config](di),
		store:    do.MustInvoke[*store.Service](di),
		embedder: do.MustInvoke[*embedding.Client](di),
		cache:    cache.New(cacheTTL, cacheCleanup),
	}, nil
}

// Search returns the k most relevant, non-duplicate documentation chunks
// joined into a single context block. Near-duplicates produced by overlapping
// chunk windows are dropped; the first-seen chunk wins, preserving
// similarity-rank order.
func (s *Service) Search(ctx context.Context, query string, k int) (string, error) {
	cacheKey := fmt.Sprintf("%s|%d", query, k)
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(string), nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	fetchK := int(math.Ceil(float64(k) * overFetchFactor))

	chunks, err := s.store.SearchSimilar(ctx, vector, fetchK)
	if err != nil {
		return "", fmt.Errorf("similarity search: %w", err)
	}

	unique := deduplicate(chunks)
	if len(unique) > k {
		unique = unique[:k]
	}

	if len(unique) == 0 {
		return "", ErrNoResults
	}

	slog.Info("Retrieved documentation context",
		"query", query,
		"fetched", len(chunks),
		"unique", len(unique))

	result := strings.Join(pie.Map(unique, func(c store.Chunk) string {
		return c.Content
	}), chunkSeparator)

	s.cache.SetDefault(cacheKey, result)

	return result, nil
}

// deduplicate removes chunks whose content fingerprints have already been
// seen, keeping the original rank order.
func deduplicate(chunks []store.Chunk) []store.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	unique := make([]store.Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		fp := fingerprint(chunk.Content)

		if _, ok := seen[fp]; ok {
			continue
		}

		seen[fp] = struct{}{}
		unique = append(unique, chunk)
	}

	return unique
}

// fingerprint is the whitespace-normalized prefix of a chunk. Two chunks with
// equal fingerprints are duplicates regardless of their source metadata.
func fingerprint(content string) string {
	runes := []rune(content)
	if len(runes) > fingerprintLength {
		runes = runes[:fingerprintLength]
	}

	return strings.Join(strings.Fields(string(runes)), " ")
}
