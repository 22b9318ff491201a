package rag

import (
	"crypto/md5"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Chunk is a bounded span of a document's text, the unit of retrieval.
// Chunks are immutable once created and positionally aligned with their
// embedding vectors in the user's index.
type Chunk struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SourceFile string    `json:"source_file"`
	ChunkIndex int       `json:"chunk_index"`
	WordCount  int       `json:"word_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunker splits document text into overlapping, bounded-size chunks.
// Sizes are measured in words; boundaries prefer sentence ends.
type Chunker struct {
	targetSize int
	overlap    int
}

// NewChunker creates a Chunker producing chunks of at most targetSize words
// (oversized single sentences excepted), with the trailing overlap words of
// each chunk repeated at the start of the next.
func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = 500
	}
	if overlap < 0 || overlap >= targetSize {
		overlap = targetSize / 10
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}
}

// sentenceEnd matches runs of sentence-terminating punctuation. This is a
// cheap approximation, not a sentence tokenizer: abbreviations and decimal
// points split too. Good enough for chunk boundaries.
var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// splitSentences splits text into sentence-like units, dropping empties.
func splitSentences(text string) []string {
	parts := sentenceEnd.Split(text, -1)
	units := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			units = append(units, p)
		}
	}
	return units
}

// chunkID derives a deterministic chunk identifier from the source file and
// chunk position. Re-ingesting a same-named file reuses IDs at the same
// index; documents are append-only so this is an accepted collision.
func chunkID(sourceFile string, index int) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s_%d", sourceFile, index))))
}

// Chunk splits text into chunks. Sentence units are accumulated greedily;
// when the next unit would push a chunk past the target size, the chunk is
// closed and the next one is seeded with its trailing overlap words followed
// by the unit that triggered the overflow. A single unit longer than the
// target size is emitted whole rather than force-split. Empty input yields
// nil.
func (c *Chunker) Chunk(text, sourceFile string) []Chunk {
	units := splitSentences(text)
	if len(units) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var chunks []Chunk
	var buf []string
	index := 0

	for _, unit := range units {
		words := strings.Fields(unit)
		if len(buf) > 0 && len(buf)+len(words) > c.targetSize {
			chunks = append(chunks, c.close(buf, sourceFile, index, now))
			index++
			tail := overlapTail(buf, c.overlap)
			buf = append(append(make([]string, 0, len(tail)+len(words)), tail...), words...)
		} else {
			buf = append(buf, words...)
		}
	}

	if len(buf) > 0 {
		chunks = append(chunks, c.close(buf, sourceFile, index, now))
	}

	return chunks
}

func (c *Chunker) close(words []string, sourceFile string, index int, created time.Time) Chunk {
	return Chunk{
		ID:         chunkID(sourceFile, index),
		Content:    strings.Join(words, " "),
		SourceFile: sourceFile,
		ChunkIndex: index,
		WordCount:  len(words),
		CreatedAt:  created,
	}
}

// overlapTail returns the last n words, or all of them when fewer exist.
func overlapTail(words []string, n int) []string {
	if len(words) <= n {
		return words
	}
	return words[len(words)-n:]
}
