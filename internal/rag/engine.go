// Package rag implements per-user document retrieval: sentence-aware
// chunking, batched embedding, vector similarity search, and durable
// per-user storage.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoContent is returned when a document yields no chunks after extraction
// and chunking.
var ErrNoContent = errors.New("no extractable content")

// AddResult reports the outcome of a document ingestion.
type AddResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ChunksCreated int    `json:"chunks_created"`
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk
	RelevanceScore float32 `json:"relevance_score"`
}

// Stats summarizes a user's ingested corpus. Documents lists every
// ingestion in upload order; TotalDocuments counts distinct filenames.
type Stats struct {
	TotalChunks    int            `json:"total_chunks"`
	TotalDocuments int            `json:"total_documents"`
	TotalWords     int            `json:"total_words"`
	Documents      []DocumentInfo `json:"documents"`
	LastUpdated    string         `json:"last_updated,omitempty"`
}

// Engine owns all per-user retrieval state. Each user's data is loaded
// lazily on first access and guarded by a per-user lock so readers proceed
// concurrently while ingestion is exclusive. Embedding always happens
// outside the locks.
type Engine struct {
	chunker  *Chunker
	embedder *Embedder
	store    *UserStore
	log      *slog.Logger

	mu    sync.Mutex
	users map[string]*userState
}

type userState struct {
	mu   sync.RWMutex
	data *UserData
}

func NewEngine(chunker *Chunker, embedder *Embedder, store *UserStore, log *slog.Logger) *Engine {
	return &Engine{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		log:      log,
		users:    make(map[string]*userState),
	}
}

// stateFor returns the user's state, loading it from disk on first access.
// The load happens under the user's own lock so two first-touch callers do
// not race, and the global map lock is never held across disk IO.
func (e *Engine) stateFor(userID string) (*userState, error) {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok {
		st = &userState{}
		e.users[userID] = st
	}
	e.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.data == nil {
		data, err := e.store.Load(userID)
		if err != nil {
			return nil, err
		}
		st.data = data
		if data.Index.Len() > 0 {
			e.log.Info("loaded user data", "user", userID, "chunks", len(data.Chunks))
		}
	}
	return st, nil
}

// AddDocument chunks and embeds text, appends it to the user's index, and
// persists the result. Re-ingesting the same filename appends new chunks and
// a new registry entry; earlier ingestions are never merged or replaced.
//
// A persistence failure is reported as an unsuccessful result, but the
// in-memory state keeps the new chunks so retrieval still sees them.
func (e *Engine) AddDocument(ctx context.Context, text, filename, userID string) (AddResult, error) {
	chunks := e.chunker.Chunk(text, filename)
	if len(chunks) == 0 {
		return AddResult{}, fmt.Errorf("%w in %s", ErrNoContent, filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return AddResult{}, fmt.Errorf("embedding %s: %w", filename, err)
	}

	st, err := e.stateFor(userID)
	if err != nil {
		return AddResult{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.data.Index.Add(vectors); err != nil {
		return AddResult{}, fmt.Errorf("indexing %s: %w", filename, err)
	}
	st.data.Chunks = append(st.data.Chunks, chunks...)

	st.data.Documents = append(st.data.Documents, DocumentInfo{
		Filename:    filename,
		UploadDate:  time.Now().UTC().Format(time.RFC3339),
		ChunksCount: len(chunks),
		TextLength:  len(text),
	})

	if err := e.store.Save(userID, st.data); err != nil {
		e.log.Error("saving user data", "user", userID, "error", err)
		return AddResult{
			Success:       false,
			Message:       fmt.Sprintf("Added %d chunks from %s, but saving failed: %v", len(chunks), filename, err),
			ChunksCreated: len(chunks),
		}, nil
	}

	e.log.Info("document added", "user", userID, "file", filename, "chunks", len(chunks))
	return AddResult{
		Success:       true,
		Message:       fmt.Sprintf("Added %d chunks from %s", len(chunks), filename),
		ChunksCreated: len(chunks),
	}, nil
}

// Retrieve returns the topK most similar chunks for the query, best first.
// A user with no documents gets an empty result, not an error.
func (e *Engine) Retrieve(ctx context.Context, query, userID string, topK int) ([]ScoredChunk, error) {
	st, err := e.stateFor(userID)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	empty := len(st.data.Chunks) == 0
	st.mu.RUnlock()
	if empty {
		return nil, nil
	}

	qv, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	hits := st.data.Index.Search(qv, topK)
	results := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(st.data.Chunks) {
			continue
		}
		results = append(results, ScoredChunk{
			Chunk:          st.data.Chunks[h.Position],
			RelevanceScore: h.Score,
		})
	}
	return results, nil
}

// DocumentStats summarizes the user's corpus.
func (e *Engine) DocumentStats(userID string) (Stats, error) {
	st, err := e.stateFor(userID)
	if err != nil {
		return Stats{}, err
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	stats := Stats{
		TotalChunks: len(st.data.Chunks),
		Documents:   append([]DocumentInfo(nil), st.data.Documents...),
	}
	seen := make(map[string]struct{}, len(st.data.Documents))
	for _, doc := range st.data.Documents {
		seen[doc.Filename] = struct{}{}
		if doc.UploadDate > stats.LastUpdated {
			stats.LastUpdated = doc.UploadDate
		}
	}
	stats.TotalDocuments = len(seen)
	for _, c := range st.data.Chunks {
		stats.TotalWords += c.WordCount
	}
	return stats, nil
}

// ChunkCount reports how many chunks the user has, loading their data if
// needed.
func (e *Engine) ChunkCount(userID string) (int, error) {
	st, err := e.stateFor(userID)
	if err != nil {
		return 0, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.data.Chunks), nil
}

// ClearDocuments removes the user's chunks, documents, and index, both in
// memory and on disk. The disk removal happens first; if it fails, the
// in-memory state is left untouched so memory and disk stay consistent.
func (e *Engine) ClearDocuments(userID string) error {
	st, err := e.stateFor(userID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	fresh, err := e.store.Empty()
	if err != nil {
		return err
	}
	if err := e.store.Clear(userID); err != nil {
		return err
	}
	st.data = fresh
	e.log.Info("documents cleared", "user", userID)
	return nil
}
