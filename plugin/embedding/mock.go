package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
)

// MockProvider is a deterministic in-process Provider for tests and local
// runs without an API key. Vectors are derived from the input hash, so the
// same text always maps to the same vector.
type MockProvider struct {
	Dim  int
	Fail bool
}

// NewMockProvider returns a MockProvider emitting vectors of dim dimensions.
func NewMockProvider(dim int) *MockProvider {
	return &MockProvider{Dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.Fail {
		return nil, ierrors.New(ierrors.CodeProviderFailure, "mock provider failure")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = deriveVector(Truncate(text), m.Dim)
	}
	return vectors, nil
}

func (m *MockProvider) Dimensions() int {
	return m.Dim
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// deriveVector expands the text hash into a unit-scaled vector.
func deriveVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vector := make([]float32, dim)
	for i := range vector {
		chunk := sum[(i*4)%(len(sum)-3):]
		raw := binary.BigEndian.Uint32(chunk[:4]) ^ uint32(i*2654435761)
		vector[i] = float32(raw%2000)/1000.0 - 1.0
	}
	return vector
}
