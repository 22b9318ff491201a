// Package api exposes the study assistant over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studymate-app/studymate/internal/extract"
	"github.com/studymate-app/studymate/internal/rag"
	"github.com/studymate-app/studymate/internal/router"
	"github.com/studymate-app/studymate/internal/storage"
)

const maxUploadSize = 10 << 20 // 10MB

// DocumentEngine abstracts the retrieval engine for the API layer.
type DocumentEngine interface {
	AddDocument(ctx context.Context, text, filename, userID string) (rag.AddResult, error)
	DocumentStats(userID string) (rag.Stats, error)
	ClearDocuments(userID string) error
}

// Answerer abstracts query routing for the API layer.
type Answerer interface {
	Answer(ctx context.Context, query, userID string, mode router.Mode, conv router.Conversation) (router.Response, error)
}

type AppDeps struct {
	Store  *storage.Store
	Engine DocumentEngine
	Router Answerer
	Token  string
	Log    *slog.Logger
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))
		r.Post("/documents", handleUploadDocument(deps))
		r.Get("/documents/stats", handleDocumentStats(deps))
		r.Delete("/documents", handleClearDocuments(deps))
		r.Get("/sessions", handleListSessions(deps))
		r.Post("/sessions", handleCreateSession(deps))
		r.Delete("/sessions/{id}", handleDeleteSession(deps))
		r.Get("/interactions", handleListInteractions(deps))
		r.Get("/interactions/{id}", handleGetInteraction(deps))
		r.Get("/analytics", handleAnalytics(deps))
	})

	return r
}

// docKey scopes document visibility to one session of one user. An empty
// sessionID scopes to the bare user, so sessionless uploads and sessionless
// chats see the same documents.
func docKey(userID, sessionID string) string {
	if sessionID == "" {
		return userID
	}
	return userID + "_" + sessionID
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

type ChatRequest struct {
	Query     string           `json:"query"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	Mode      string           `json:"mode"`
	History   []router.Message `json:"history,omitempty"`
	Keywords  []string         `json:"keywords,omitempty"`
}

type ChatResponse struct {
	Content   string         `json:"content"`
	Source    string         `json:"source"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Mode      string         `json:"mode"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		mode, err := router.ParseMode(req.Mode)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		now := time.Now().UTC()
		if err := deps.Store.TouchSession(sessionID, now); errors.Is(err, storage.ErrNotFound) {
			err = deps.Store.CreateSession(storage.Session{
				ID: sessionID, UserID: req.UserID, CreatedAt: now, UpdatedAt: now,
			})
			if err != nil {
				deps.Log.Error("creating session", "error", err)
			}
		} else if err != nil {
			deps.Log.Error("touching session", "error", err)
		}

		// Documents are scoped by the session id the client sent. A generated
		// session id exists for history only; using it for retrieval would
		// hide documents uploaded without a session.
		scope := docKey(req.UserID, req.SessionID)
		conv := router.Conversation{History: req.History, Keywords: req.Keywords}

		start := time.Now()
		resp, err := deps.Router.Answer(r.Context(), req.Query, scope, mode, conv)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "answering failed: %v", err)
			return
		}

		interaction := storage.Interaction{
			ID:           uuid.NewString(),
			UserID:       req.UserID,
			SessionID:    sessionID,
			Mode:         string(mode),
			Query:        req.Query,
			Response:     resp.Content,
			Source:       resp.Source,
			ResponseTime: time.Since(start).Seconds(),
			CreatedAt:    now,
		}
		if err := deps.Store.SaveInteraction(interaction); err != nil {
			// History is best effort; the answer still goes out.
			deps.Log.Error("saving interaction", "error", err)
		}

		respondJSON(w, ChatResponse{
			Content:   resp.Content,
			Source:    resp.Source,
			SessionID: sessionID,
			UserID:    req.UserID,
			Mode:      string(mode),
			Metadata:  resp.Metadata,
		})
	}
}

func handleUploadDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		userID := r.FormValue("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		sessionID := r.FormValue("session_id")

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required: %v", err)
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading file: %v", err)
			return
		}

		text, err := extract.Text(content, header.Filename)
		if errors.Is(err, extract.ErrUnsupported) {
			httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "extracting text from %s: %v", header.Filename, err)
			return
		}

		result, err := deps.Engine.AddDocument(r.Context(), text, header.Filename, docKey(userID, sessionID))
		if errors.Is(err, rag.ErrNoContent) {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "adding document: %v", err)
			return
		}

		respondJSON(w, result)
	}
}

func handleDocumentStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		stats, err := deps.Engine.DocumentStats(docKey(userID, r.URL.Query().Get("session_id")))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "reading stats: %v", err)
			return
		}
		respondJSON(w, stats)
	}
}

func handleClearDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if err := deps.Engine.ClearDocuments(docKey(userID, r.URL.Query().Get("session_id"))); err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "clearing documents: %v", err)
			return
		}
		respondJSON(w, map[string]string{"status": "cleared"})
	}
}

type CreateSessionRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func handleCreateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		now := time.Now().UTC()
		sess := storage.Session{
			ID:        uuid.NewString(),
			UserID:    req.UserID,
			Title:     req.Title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := deps.Store.CreateSession(sess); err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "creating session: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sess)
	}
}

func handleListSessions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		limit := queryLimit(r, 50)
		sessions, err := deps.Store.ListSessions(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "listing sessions: %v", err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		respondJSON(w, sessions)
	}
}

func handleDeleteSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Store.DeleteSession(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "session %s not found", id)
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "deleting session: %v", err)
			return
		}
		respondJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleListInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		limit := queryLimit(r, 20)
		interactions, err := deps.Store.RecentInteractions(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "listing interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}
		respondJSON(w, interactions)
	}
}

func handleGetInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		interaction, err := deps.Store.GetInteraction(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "interaction %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "reading interaction: %v", err)
			return
		}
		respondJSON(w, interaction)
	}
}

func handleAnalytics(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		analytics, err := deps.Store.UserAnalytics(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "reading analytics: %v", err)
			return
		}
		respondJSON(w, analytics)
	}
}

func queryLimit(r *http.Request, def int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			return n
		}
	}
	return def
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
