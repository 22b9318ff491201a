package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func generateJSON(text string) []byte {
	b, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return b
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "k" {
			t.Errorf("api key header = %q, want k", got)
		}
		w.Write(generateJSON("mitochondria are the powerhouse of the cell"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "gemini-2.0-flash", srv.URL)
	got, err := c.Generate(context.Background(), "explain mitochondria")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "mitochondria are the powerhouse of the cell" {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerate_NoKey(t *testing.T) {
	c := NewClient("", "gemini-2.0-flash")
	if c.Available() {
		t.Error("Available() = true with empty key")
	}
	if _, err := c.Generate(context.Background(), "hi"); err != ErrUnavailable {
		t.Errorf("Generate err = %v, want ErrUnavailable", err)
	}
}

func TestGenerate_RetryOn429(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(generateJSON("ok"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "gemini-2.0-flash", srv.URL)
	got, err := c.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" {
		t.Errorf("Generate = %q, want ok", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", "gemini-2.0-flash", srv.URL)
	if _, err := c.Generate(context.Background(), "hi"); err == nil {
		t.Error("Generate should fail on 500")
	}
}
