package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
	"github.com/yizucodes/interview-agent/app/config"
)

const requestTimeout = 30 * time.Second

type Client struct {
	cfg    *config.Config
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	clientConfig := openai.DefaultConfig(cfg.OpenAI.Embedding.Token)
	clientConfig.BaseURL = cfg.OpenAI.Embedding.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: requestTimeout,
	}

	return &Client{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.EmbeddingModel(cfg.OpenAI.Embedding.Model),
	}, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch (%d != %d)", len(resp.Data), len(texts))
	}

	result := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		result[i] = item.Embedding
	}

	return result, nil
}

// EmbedQuery embeds a single search query.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}
