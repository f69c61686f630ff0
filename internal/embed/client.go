package embed

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates text embeddings through an OpenAI-compatible API.
type Client struct {
	api          *openai.Client
	Model        string
	ExpectedSize int // Expected vector size for validation
}

// NewClient creates a new embeddings client.
// baseURL may point at any OpenAI-compatible server; leave it empty to use
// the default OpenAI endpoint. expectedSize is the vector size every
// returned embedding is validated against.
func NewClient(baseURL, apiKey, model string, expectedSize int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	return &Client{
		api:          openai.NewClientWithConfig(cfg),
		Model:        model,
		ExpectedSize: expectedSize,
	}
}

// EmbedTexts generates embeddings for the given texts.
// Returns one float32 vector per input text, validated against ExpectedSize.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		if len(data.Embedding) != c.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", data.Index, len(data.Embedding), c.ExpectedSize)
		}
		if data.Index < 0 || data.Index >= len(result) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		result[data.Index] = data.Embedding
	}

	return result, nil
}

// EmbedQuery generates a single embedding for a search query.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
