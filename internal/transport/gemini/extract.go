package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/talentops/cvindex/internal/domain"
)

// The API returns the vector at one of two JSON paths depending on the
// endpoint variant: embedding.values (embedContent) or
// embeddings[0].values (batchEmbedContents). Each known shape is an
// explicit extractor tried in order; a response matching neither is an
// error.
type extractor struct {
	name string
	fn   func(raw []byte) ([]float32, bool)
}

var extractors = []extractor{
	{name: "embedding.values", fn: extractSingle},
	{name: "embeddings[0].values", fn: extractBatch},
}

func extractVector(raw []byte) ([]float32, error) {
	for _, ex := range extractors {
		if vec, ok := ex.fn(raw); ok {
			return vec, nil
		}
	}
	return nil, fmt.Errorf("response matches no known embedding shape: %s: %w",
		truncate(raw, 200), domain.ErrEmbeddingProviderError)
}

func extractSingle(raw []byte) ([]float32, bool) {
	var parsed struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if json.Unmarshal(raw, &parsed) != nil || len(parsed.Embedding.Values) == 0 {
		return nil, false
	}
	return parsed.Embedding.Values, true
}

func extractBatch(raw []byte) ([]float32, bool) {
	var parsed struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if json.Unmarshal(raw, &parsed) != nil || len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0].Values) == 0 {
		return nil, false
	}
	return parsed.Embeddings[0].Values, true
}
