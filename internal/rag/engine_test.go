package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

const testDim = 16

// bagEmbedClient produces a bag-of-words vector per text so similarity in
// tests tracks word overlap.
type bagEmbedClient struct{}

func (bagEmbedClient) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			io.WriteString(h, strings.Trim(w, ".,!?"))
			v[h.Sum32()%testDim]++
		}
		out[i] = v
	}
	return out, nil
}

func testEngine(t *testing.T, backend string) *Engine {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewUserStore(t.TempDir(), backend, testDim)
	return NewEngine(
		NewChunker(40, 5),
		NewEmbedder(bagEmbedClient{}, "test-model", testDim),
		store,
		log,
	)
}

const plantsText = `Photosynthesis converts sunlight into chemical energy inside chloroplasts.
The light reactions split water and release oxygen as a byproduct.
The Calvin cycle then fixes carbon dioxide into sugars for the plant.`

const romeText = `The Roman Republic was governed by elected consuls and the senate.
Julius Caesar crossed the Rubicon and ended the republican era.
Augustus later became the first emperor of Rome.`

func TestEngineAddAndRetrieve(t *testing.T) {
	for _, backend := range []string{BackendFlat, BackendScan} {
		t.Run(backend, func(t *testing.T) {
			e := testEngine(t, backend)
			ctx := context.Background()

			res, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice")
			if err != nil {
				t.Fatalf("AddDocument: %v", err)
			}
			if !res.Success || res.ChunksCreated == 0 {
				t.Fatalf("unexpected result: %+v", res)
			}
			if _, err := e.AddDocument(ctx, romeText, "history.txt", "alice"); err != nil {
				t.Fatalf("AddDocument: %v", err)
			}

			chunks, err := e.Retrieve(ctx, "photosynthesis sunlight chloroplasts", "alice", 3)
			if err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("no chunks retrieved")
			}
			if chunks[0].SourceFile != "biology.txt" {
				t.Errorf("top chunk from %s, want biology.txt", chunks[0].SourceFile)
			}
			for i := 1; i < len(chunks); i++ {
				if chunks[i].RelevanceScore > chunks[i-1].RelevanceScore {
					t.Errorf("scores not descending at %d: %v > %v", i, chunks[i].RelevanceScore, chunks[i-1].RelevanceScore)
				}
			}
		})
	}
}

func TestEngineRetrieveNoDocuments(t *testing.T) {
	e := testEngine(t, BackendFlat)
	chunks, err := e.Retrieve(context.Background(), "anything", "nobody", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
}

func TestEngineAddEmptyDocument(t *testing.T) {
	e := testEngine(t, BackendFlat)
	if _, err := e.AddDocument(context.Background(), "   \n\t ", "empty.txt", "alice"); !errors.Is(err, ErrNoContent) {
		t.Fatalf("got %v, want ErrNoContent", err)
	}
}

func TestEngineUserIsolation(t *testing.T) {
	e := testEngine(t, BackendFlat)
	ctx := context.Background()
	if _, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	chunks, err := e.Retrieve(ctx, "photosynthesis", "bob", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("bob sees alice's chunks: %+v", chunks)
	}
}

func TestEngineStats(t *testing.T) {
	e := testEngine(t, BackendFlat)
	ctx := context.Background()
	if _, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := e.AddDocument(ctx, romeText, "history.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	stats, err := e.DocumentStats("alice")
	if err != nil {
		t.Fatalf("DocumentStats: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("got %d documents, want 2", stats.TotalDocuments)
	}
	if stats.TotalChunks == 0 || stats.TotalWords == 0 {
		t.Errorf("empty counters: %+v", stats)
	}
	if len(stats.Documents) != 2 || stats.Documents[0].Filename != "biology.txt" || stats.Documents[1].Filename != "history.txt" {
		t.Errorf("registry not in upload order: %+v", stats.Documents)
	}
	if stats.LastUpdated == "" {
		t.Errorf("LastUpdated not set")
	}
}

func TestEngineReingestAppends(t *testing.T) {
	e := testEngine(t, BackendFlat)
	ctx := context.Background()

	first, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice")
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	stats, err := e.DocumentStats("alice")
	if err != nil {
		t.Fatalf("DocumentStats: %v", err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("got %d documents, want 1", stats.TotalDocuments)
	}
	if stats.TotalChunks != 2*first.ChunksCreated {
		t.Errorf("got %d chunks, want %d", stats.TotalChunks, 2*first.ChunksCreated)
	}
	// Each ingestion gets its own registry entry, even for the same filename.
	if len(stats.Documents) != 2 {
		t.Fatalf("registry has %d entries after two ingestions, want 2", len(stats.Documents))
	}
	for i, doc := range stats.Documents {
		if doc.Filename != "biology.txt" || doc.ChunksCount != first.ChunksCreated {
			t.Errorf("entry %d: %+v, want biology.txt with %d chunks", i, doc, first.ChunksCreated)
		}
	}
}

func TestEngineClearDocuments(t *testing.T) {
	e := testEngine(t, BackendFlat)
	ctx := context.Background()
	if _, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := e.ClearDocuments("alice"); err != nil {
		t.Fatalf("ClearDocuments: %v", err)
	}

	n, err := e.ChunkCount("alice")
	if err != nil {
		t.Fatalf("ChunkCount: %v", err)
	}
	if n != 0 {
		t.Errorf("got %d chunks after clear, want 0", n)
	}
}

// A failed disk removal must leave the in-memory state untouched, otherwise
// the cleared chunks come back after a restart while live retrieval finds
// nothing.
func TestEngineClearDocumentsDiskFailureKeepsState(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not restrict root")
	}
	root := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(
		NewChunker(40, 5),
		NewEmbedder(bagEmbedClient{}, "test-model", testDim),
		NewUserStore(root, BackendFlat, testDim),
		log,
	)
	ctx := context.Background()
	if _, err := e.AddDocument(ctx, plantsText, "biology.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	if err := os.Chmod(root, 0o555); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(root, 0o755) })

	if err := e.ClearDocuments("alice"); err == nil {
		t.Fatal("expected ClearDocuments to fail")
	}
	chunks, err := e.Retrieve(ctx, "photosynthesis", "alice", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) == 0 {
		t.Error("in-memory state lost after failed clear")
	}
}

// Data persisted by one engine must be visible to a fresh engine sharing the
// same storage root.
func TestEnginePersistenceAcrossRestarts(t *testing.T) {
	root := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	newEngine := func() *Engine {
		return NewEngine(
			NewChunker(40, 5),
			NewEmbedder(bagEmbedClient{}, "test-model", testDim),
			NewUserStore(root, BackendFlat, testDim),
			log,
		)
	}

	ctx := context.Background()
	if _, err := newEngine().AddDocument(ctx, plantsText, "biology.txt", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	chunks, err := newEngine().Retrieve(ctx, "calvin cycle carbon", "alice", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("restarted engine retrieved nothing")
	}
}
