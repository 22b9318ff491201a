package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"content":"Photosynthesis converts light.","source":"rag","session_id":"s1","user_id":"alice","mode":"chat"}`,
	})

	req := map[string]any{
		"query":   "what is photosynthesis",
		"user_id": "alice",
		"mode":    "chat",
	}
	resp, err := ts.client().post(ctx, "/chat", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]any
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["source"] != "rag" {
		t.Errorf("source = %v, want rag", result["source"])
	}

	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["query"] != "what is photosynthesis" {
		t.Errorf("body.query = %v", body["query"])
	}
}

func TestUploadRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /documents": `{"success":true,"message":"Added 2 chunks from notes.txt","chunks_created":2}`,
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("Cells divide by mitosis."), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	resp, err := ts.client().upload(ctx, "/documents", path, map[string]string{"user_id": "alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	r := ts.requests[0]
	if !strings.HasPrefix(r.ContentType, "multipart/form-data") {
		t.Errorf("content type = %q, want multipart", r.ContentType)
	}
	if !strings.Contains(r.Body, "mitosis") {
		t.Errorf("file content missing from body")
	}
	if !strings.Contains(r.Body, `name="user_id"`) {
		t.Errorf("user_id field missing from body")
	}
}

func TestDecodeJSONServerError(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := ts.client().get(ctx, "/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v map[string]any
	if err := decodeJSON(resp, &v); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for ask without a question")
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	t.Setenv("NO_COLOR", "")

	noColor = true
	if result := colorize(colorGreen, "hi"); strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}

	noColor = false
	if result := colorize(colorGreen, "hi"); !strings.Contains(result, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}

	t.Setenv("NO_COLOR", "1")
	if result := colorize(colorGreen, "hi"); strings.Contains(result, "\033") {
		t.Errorf("colorize with NO_COLOR set should not contain ANSI codes, got %q", result)
	}
}
