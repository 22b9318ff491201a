// Package router decides, per query, whether to answer from retrieved
// document chunks, from the generative model alone, or from a template
// fallback. The decision is stateless and re-evaluated on every query.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/studymate-app/studymate/internal/rag"
)

// Source tags identify which answering path produced a response.
const (
	SourceRAG       = "rag"
	SourceRAGNotes  = "rag_notes"
	SourceRAGQuiz   = "rag_quiz"
	SourceGemini    = "gemini"
	SourceGeminiRAG = "gemini+rag"
	SourceNotesGen  = "notes_generator"
	SourceQuizGen   = "quiz_generator"
)

// Retriever is the document side of routing.
type Retriever interface {
	Retrieve(ctx context.Context, query, userID string, topK int) ([]rag.ScoredChunk, error)
	ChunkCount(userID string) (int, error)
}

// Generator is the generative side of routing. Available reports whether the
// collaborator is configured; Generate may still fail transiently.
type Generator interface {
	Available() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// Response is a routed answer. Source names the path that produced Content.
type Response struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Message is one prior turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation carries recent chat history and discussed topics into
// generated answers so follow-up questions stay coherent. Retrieval-grounded
// prompts ignore it; only the generation paths use it.
type Conversation struct {
	History  []Message `json:"history,omitempty"`
	Keywords []string  `json:"keywords,omitempty"`
}

// Caps on how much conversation state reaches a prompt.
const (
	historyLimit = 5
	keywordLimit = 10
)

// Retrieval depths per path.
const (
	notesTopK    = 10
	defaultTopK  = 5
	fallbackTopK = 3
)

// minRelevance gates the rag path: when the best retrieved chunk scores
// below it, the chunks are treated as not relevant and the query falls
// through to the gemini+rag path.
const minRelevance = 0.3

const unavailableMessage = `I'm running in limited mode without full AI capabilities.

To unlock all features, configure a Gemini API key and restart the server.

For now, you can still upload documents and I'll help you search through them.`

// Router applies the mode-aware answering policy.
type Router struct {
	retriever Retriever
	generator Generator
	log       *slog.Logger
}

func New(retriever Retriever, generator Generator, log *slog.Logger) *Router {
	return &Router{retriever: retriever, generator: generator, log: log}
}

// Answer routes a query. userID is the retrieval scope (callers pass a
// session-scoped key when document visibility is per session). Errors from
// collaborators degrade to textual answers; Answer fails only on invalid
// input.
func (r *Router) Answer(ctx context.Context, query, userID string, mode Mode, conv Conversation) (Response, error) {
	start := time.Now()

	count, err := r.retriever.ChunkCount(userID)
	if err != nil {
		r.log.Error("chunk count lookup failed", "user", userID, "error", err)
		count = 0
	}
	hasDocuments := count > 0

	var resp Response
	switch {
	case mode == ModeNotes && hasDocuments:
		resp = r.answerFromDocuments(ctx, query, userID, mode, conv, notesTopK, SourceRAGNotes)
	case mode == ModeNotes:
		resp = r.generateOnly(ctx, notesPrompt(query), SourceNotesGen)
	case mode == ModeQuiz && hasDocuments:
		resp = r.answerFromDocuments(ctx, query, userID, mode, conv, defaultTopK, SourceRAGQuiz)
	case mode == ModeQuiz:
		resp = r.generateOnly(ctx, quizPrompt(query), SourceQuizGen)
	case hasDocuments && (isDocumentQuery(query) || wordCount(query) <= 10):
		resp = r.answerFromDocuments(ctx, query, userID, mode, conv, defaultTopK, SourceRAG)
	default:
		resp = r.generateOnly(ctx, generalPrompt(query, mode, conv), SourceGemini)
	}

	resp.Metadata = map[string]any{
		"response_time":   time.Since(start).Seconds(),
		"has_documents":   hasDocuments,
		"document_chunks": count,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	return resp, nil
}

// answerFromDocuments is the retrieval-backed path. Low-relevance results
// fall through to a generation-first answer grounded on a smaller context.
// A failed retrieval degrades to generation only; a failed generation
// degrades to a raw dump of the retrieved chunks.
func (r *Router) answerFromDocuments(ctx context.Context, query, userID string, mode Mode, conv Conversation, topK int, source string) Response {
	chunks, err := r.retriever.Retrieve(ctx, query, userID, topK)
	if err != nil {
		r.log.Error("retrieval failed", "user", userID, "error", err)
		return r.generateOnly(ctx, generalPrompt(query, mode, conv), SourceGemini)
	}

	if source == SourceRAG && !relevant(chunks) {
		chunks, err = r.retriever.Retrieve(ctx, query, userID, fallbackTopK)
		if err != nil {
			r.log.Error("fallback retrieval failed", "user", userID, "error", err)
			return r.generateOnly(ctx, generalPrompt(query, mode, conv), SourceGemini)
		}
		return r.generateWithChunks(ctx, query, blendedPrompt(query, mode, chunkContext(chunks), conv), chunks, SourceGeminiRAG)
	}

	return r.generateWithChunks(ctx, query, groundedPrompt(query, mode, chunkContext(chunks)), chunks, source)
}

func (r *Router) generateWithChunks(ctx context.Context, query, prompt string, chunks []rag.ScoredChunk, source string) Response {
	if !r.generator.Available() {
		return Response{Content: chunkDump(query, chunks), Source: source}
	}
	content, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		r.log.Error("generation failed", "error", err)
		return Response{Content: chunkDump(query, chunks), Source: source}
	}
	return Response{Content: content, Source: source}
}

func (r *Router) generateOnly(ctx context.Context, prompt, source string) Response {
	if !r.generator.Available() {
		return Response{Content: unavailableMessage, Source: source}
	}
	content, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		r.log.Error("generation failed", "error", err)
		return Response{Content: unavailableMessage, Source: source}
	}
	return Response{Content: content, Source: source}
}

// relevant reports whether retrieval produced at least one chunk above the
// relevance gate.
func relevant(chunks []rag.ScoredChunk) bool {
	return len(chunks) > 0 && chunks[0].RelevanceScore >= minRelevance
}

// documentKeywords triggers the retrieval-backed path when any of them
// appears in the query. Deliberately aggressive; false positives cost one
// extra retrieval, false negatives hide relevant documents.
var documentKeywords = []string{
	"document", "pdf", "file", "uploaded", "notes", "material", "content",
	"what does", "according to", "in the document", "from the file",
	"explain from", "summarize", "key points", "main topics", "topics",
	"discuss", "covered", "mentioned", "this", "these", "chapter",
	"section", "page", "lecture", "study", "course", "subject", "create",
	"generate", "make", "write", "note", "summary", "overview",
}

var questionWords = []string{
	"what", "how", "why", "explain", "tell", "show", "create", "generate", "make", "write",
}

// isDocumentQuery is a heuristic gate, not a classifier.
func isDocumentQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range documentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if wordCount(query) <= 10 {
		for _, w := range questionWords {
			if strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// chunkContext renders retrieved chunks as grounding context for a prompt.
func chunkContext(chunks []rag.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[From %s]: %s", c.SourceFile, c.Content)
	}
	return b.String()
}

// chunkDump formats retrieved chunks as a direct answer when the generator
// cannot be used, so documents stay useful in degraded mode.
func chunkDump(query string, chunks []rag.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("**Based on your uploaded documents:**\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", query)
	b.WriteString("**Relevant Information Found:**\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "**%d. From %s:**\n%s\n\n", i+1, c.SourceFile, truncate(c.Content, 500))
	}
	b.WriteString("---\n*For AI-powered analysis and explanations, please configure your Gemini API key.*")
	return b.String()
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
