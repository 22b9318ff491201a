package rag

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Hit is one search result: the position of a stored vector in insertion
// order, and its similarity score (larger is more similar).
type Hit struct {
	Position int
	Score    float32
}

// VectorIndex is a per-user append-only vector collection. Two strategies
// implement it: an exact inner-product index and a brute-force cosine
// fallback. Both rank normalized vectors identically; scores are not
// bit-exact across strategies.
//
// Implementations are not safe for concurrent use; the retrieval engine
// serializes access per user.
type VectorIndex interface {
	// Add appends vectors in order, keeping positions aligned with the
	// caller's chunk sequence.
	Add(vectors [][]float32) error

	// Search returns up to k hits sorted by score descending. Ties are
	// broken by lower position. Searching an empty index returns nil.
	Search(query []float32, k int) []Hit

	// Len returns the number of stored vectors.
	Len() int

	// Save writes the index to w in its native serialization.
	Save(w io.Writer) error
}

// Index backends selectable at startup.
const (
	BackendFlat = "flat" // exact inner-product index, binary artifact
	BackendScan = "scan" // brute-force cosine fallback, JSON artifact
)

// NewIndex creates an empty VectorIndex for the given backend.
func NewIndex(backend string, dim int) (VectorIndex, error) {
	switch backend {
	case BackendFlat:
		return newFlatIndex(dim), nil
	case BackendScan:
		return newScanIndex(dim), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}

// LoadIndex reads a VectorIndex of the given backend from r.
func LoadIndex(backend string, dim int, r io.Reader) (VectorIndex, error) {
	switch backend {
	case BackendFlat:
		return loadFlatIndex(dim, r)
	case BackendScan:
		return loadScanIndex(dim, r)
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}

// IndexArtifact returns the per-user storage filename for the backend's
// serialized index.
func IndexArtifact(backend string) string {
	if backend == BackendScan {
		return "embeddings.json"
	}
	return "index.bin"
}

func checkDims(dim int, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d: dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}

// hitHeap is a min-heap of Hit used to track top-K candidates during a scan.
// Score ascending; among equal scores the higher position sits on top so it
// is evicted first, keeping earlier positions on ties.
type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }
func (h hitHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Position > h[j].Position
}
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK scans scores (indexed by position) and returns the k best hits,
// sorted by score descending, position ascending on ties.
func topK(n, k int, score func(pos int) float32) []Hit {
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	h := make(hitHeap, 0, k)
	heap.Init(&h)
	for pos := 0; pos < n; pos++ {
		hit := Hit{Position: pos, Score: score(pos)}
		if h.Len() < k {
			heap.Push(&h, hit)
		} else if hitLess(h[0], hit) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(&h).(Hit)
	}
	return hits
}

// hitLess reports whether a ranks strictly below b (worse score, or equal
// score at a later position).
func hitLess(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Position > b.Position
}

// flatIndex is the exact-index strategy: vectors stored in insertion order,
// searched exhaustively by inner product. Equivalent to cosine ranking when
// vectors are normalized. The serialized artifact is a little-endian binary
// block.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (ix *flatIndex) Add(vectors [][]float32) error {
	if err := checkDims(ix.dim, vectors); err != nil {
		return err
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

func (ix *flatIndex) Len() int { return len(ix.vectors) }

func (ix *flatIndex) Search(query []float32, k int) []Hit {
	if len(query) != ix.dim {
		return nil
	}
	return topK(len(ix.vectors), k, func(pos int) float32 {
		return dot(query, ix.vectors[pos])
	})
}

const flatMagic = uint32(0x53464c58) // "SFLX"

// Save writes: magic, dim, count (uint32 LE), then count*dim float32 LE.
func (ix *flatIndex) Save(w io.Writer) error {
	header := []uint32{flatMagic, uint32(ix.dim), uint32(len(ix.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("writing index header: %w", err)
		}
	}
	buf := make([]byte, ix.dim*4)
	for i, v := range ix.vectors {
		for j, f := range v {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("writing vector %d: %w", i, err)
		}
	}
	return nil
}

func loadFlatIndex(dim int, r io.Reader) (*flatIndex, error) {
	var magic, fileDim, count uint32
	for _, p := range []*uint32{&magic, &fileDim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("reading index header: %w", err)
		}
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("bad index magic %#x", magic)
	}
	if int(fileDim) != dim {
		return nil, fmt.Errorf("index dimension %d, want %d", fileDim, dim)
	}

	ix := newFlatIndex(dim)
	buf := make([]byte, dim*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading vector %d: %w", i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		ix.vectors = append(ix.vectors, v)
	}
	return ix, nil
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity, returning 0 when either norm is 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(float64(dot(a, b)) / (na * nb))
}
