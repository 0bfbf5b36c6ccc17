package proxima

import (
	"time"

	"github.com/proximadb/proxima/metadata"
)

// Vector is a stored embedding with its identity and optional metadata.
type Vector struct {
	// ID is the unique key of the vector within a store.
	ID string `json:"id"`

	// Embedding is the fixed-length numeric representation. Its length must
	// match the dimension of the owning store.
	Embedding []float32 `json:"embedding"`

	// Metadata carries optional application data attached to the vector.
	Metadata metadata.Metadata `json:"metadata,omitempty"`

	// CreatedAt is stamped on insert when left zero.
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// clone returns a deep copy so callers can never alias store-owned state.
func (v Vector) clone() Vector {
	embedding := make([]float32, len(v.Embedding))
	copy(embedding, v.Embedding)

	return Vector{
		ID:        v.ID,
		Embedding: embedding,
		Metadata:  v.Metadata.Clone(),
		CreatedAt: v.CreatedAt,
	}
}

// SearchResult is a single search hit.
type SearchResult struct {
	// ID is the id of the matched vector.
	ID string `json:"id"`

	// Distance is the dissimilarity between the query and the match,
	// smaller is closer.
	Distance float32 `json:"distance"`

	// Metadata is the vector's metadata at result time.
	Metadata metadata.Metadata `json:"metadata,omitempty"`

	// Embedding is a copy of the matched embedding, populated only when
	// requested.
	Embedding []float32 `json:"embedding,omitempty"`
}
