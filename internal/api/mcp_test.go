package api

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/studymate-app/studymate/internal/rag"
	"github.com/studymate-app/studymate/internal/router"
)

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestMCPDeps() MCPDeps {
	return MCPDeps{
		Engine: &mockEngine{
			addFn: func(_ context.Context, _, filename, _ string) (rag.AddResult, error) {
				return rag.AddResult{Success: true, Message: "Added 2 chunks from " + filename, ChunksCreated: 2}, nil
			},
			statsFn: func(string) (rag.Stats, error) {
				return rag.Stats{TotalChunks: 2, TotalDocuments: 1}, nil
			},
			clearFn: func(string) error { return nil },
		},
		Router: &mockAnswerer{
			answerFn: func(_ context.Context, _, _ string, _ router.Mode, _ router.Conversation) (router.Response, error) {
				return router.Response{Content: "the mitochondria is the powerhouse", Source: "rag"}, nil
			},
		},
	}
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestMCPAskDocuments(t *testing.T) {
	deps := newTestMCPDeps()
	handler := mcpAskDocuments(deps)

	res, err := handler(context.Background(), makeCallToolRequest("ask_documents", map[string]any{
		"query":      "what is the mitochondria",
		"user_id":    "alice",
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, res))
	}
	if !strings.Contains(toolText(t, res), "powerhouse") {
		t.Errorf("unexpected answer: %s", toolText(t, res))
	}
}

func TestMCPAskDocumentsMissingQuery(t *testing.T) {
	handler := mcpAskDocuments(newTestMCPDeps())
	res, err := handler(context.Background(), makeCallToolRequest("ask_documents", map[string]any{
		"user_id": "alice",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for missing query")
	}
}

func TestMCPAddDocument(t *testing.T) {
	deps := newTestMCPDeps()
	var gotKey string
	deps.Engine.(*mockEngine).addFn = func(_ context.Context, _, filename, userID string) (rag.AddResult, error) {
		gotKey = userID
		return rag.AddResult{Success: true, Message: "Added 2 chunks from " + filename, ChunksCreated: 2}, nil
	}
	handler := mcpAddDocument(deps)

	res, err := handler(context.Background(), makeCallToolRequest("add_document", map[string]any{
		"content":    "Cells divide by mitosis.",
		"filename":   "notes.txt",
		"user_id":    "alice",
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, res))
	}
	if gotKey != "alice_s1" {
		t.Errorf("docKey %q, want alice_s1", gotKey)
	}
}

func TestMCPDocumentStats(t *testing.T) {
	handler := mcpDocumentStats(newTestMCPDeps())
	res, err := handler(context.Background(), makeCallToolRequest("document_stats", map[string]any{
		"user_id": "alice",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(toolText(t, res), "total_chunks") {
		t.Errorf("stats output missing counters: %s", toolText(t, res))
	}
}

func TestMCPClearDocuments(t *testing.T) {
	handler := mcpClearDocuments(newTestMCPDeps())
	res, err := handler(context.Background(), makeCallToolRequest("clear_documents", map[string]any{
		"user_id": "alice",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, res))
	}
}
