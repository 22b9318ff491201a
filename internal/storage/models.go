package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one answered query, kept for history and analytics.
type Interaction struct {
	ID           string
	UserID       string
	SessionID    string
	Mode         string
	Query        string
	Response     string
	Source       string // answering path that produced the response
	ResponseTime float64
	CreatedAt    time.Time
}

// Session groups interactions and scopes document visibility.
type Session struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Analytics summarizes a user's interaction history.
type Analytics struct {
	TotalInteractions int            `json:"total_interactions"`
	ModeCounts        map[string]int `json:"mode_counts"`
	SourceCounts      map[string]int `json:"source_counts"`
	AvgResponseTime   float64        `json:"avg_response_time"`
}
