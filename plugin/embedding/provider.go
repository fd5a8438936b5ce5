// Package embedding turns memo text into vectors through an
// OpenAI-compatible provider, with a bounded cache in front of it.
package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
)

// maxInputBytes bounds the text sent to the provider. Most embedding models
// cap input around 8192 tokens; truncating at the byte level keeps requests
// under that limit without a tokenizer dependency.
const maxInputBytes = 8000

// Provider is the vector embedding provider interface.
type Provider interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int

	// ModelID returns the model identifier used for cache keying.
	ModelID() string
}

// Config selects and configures the upstream provider.
type Config struct {
	// Provider is "openai" or "siliconflow".
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

type provider struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewProvider creates a Provider backed by an OpenAI-compatible API.
func NewProvider(cfg Config) (Provider, error) {
	var clientConfig openai.ClientConfig

	switch cfg.Provider {
	case "openai", "siliconflow":
		// SiliconFlow is compatible with the OpenAI API.
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	default:
		return nil, ierrors.Newf(ierrors.CodeInvalidArgument, "unsupported embedding provider: %s", cfg.Provider)
	}

	return &provider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (p *provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ierrors.New(ierrors.CodeProviderFailure, "empty embedding result")
	}
	return vectors[0], nil
}

func (p *provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "no texts provided for embedding")
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = Truncate(t)
	}

	req := openai.EmbeddingRequest{
		Input:      truncated,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeProviderFailure, "create embeddings failed")
	}
	if len(resp.Data) != len(truncated) {
		return nil, ierrors.New(ierrors.CodeProviderFailure,
			fmt.Sprintf("embedding response size mismatch: want %d, got %d", len(truncated), len(resp.Data)))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (p *provider) Dimensions() int {
	return p.dimensions
}

func (p *provider) ModelID() string {
	return p.model
}

// Truncate bounds text to maxInputBytes, cutting back to a rune boundary so
// the result stays valid UTF-8.
func Truncate(text string) string {
	if len(text) <= maxInputBytes {
		return text
	}
	cut := maxInputBytes
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}
