package rag

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// scanIndex is the brute-force fallback strategy: cosine similarity against
// every stored vector, full sort per query. It trades query speed for a
// dependency-free, human-inspectable JSON artifact.
type scanIndex struct {
	dim     int
	vectors [][]float32
}

func newScanIndex(dim int) *scanIndex {
	return &scanIndex{dim: dim}
}

func (ix *scanIndex) Add(vectors [][]float32) error {
	if err := checkDims(ix.dim, vectors); err != nil {
		return err
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

func (ix *scanIndex) Len() int { return len(ix.vectors) }

func (ix *scanIndex) Search(query []float32, k int) []Hit {
	if len(ix.vectors) == 0 || k <= 0 {
		return nil
	}
	hits := make([]Hit, len(ix.vectors))
	for pos, v := range ix.vectors {
		hits[pos] = Hit{Position: pos, Score: cosine(query, v)}
	}
	// Stable keeps earlier positions first on equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func (ix *scanIndex) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(ix.vectors); err != nil {
		return fmt.Errorf("encoding embeddings: %w", err)
	}
	return nil
}

func loadScanIndex(dim int, r io.Reader) (*scanIndex, error) {
	ix := newScanIndex(dim)
	if err := json.NewDecoder(r).Decode(&ix.vectors); err != nil {
		return nil, fmt.Errorf("decoding embeddings: %w", err)
	}
	if err := checkDims(dim, ix.vectors); err != nil {
		return nil, err
	}
	return ix, nil
}
