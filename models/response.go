package models

import "time"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

type IngestDocumentResponse struct {
	Message  string `json:"message"`
	SourceID string `json:"source_id"`
	Chunks   int    `json:"chunks"`
	State    string `json:"state"`
}

// SourceSummary describes an indexed source without its raw text.
type SourceSummary struct {
	SourceID    string    `json:"source_id"`
	Origin      string    `json:"origin"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

type GetAllSourcesResponse struct {
	Count   int             `json:"count"`
	Entries int             `json:"entries"`
	Sources []SourceSummary `json:"sources"`
}

// SourceDocument represents a chunk of text and its origin.
type SourceDocument struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	SourceID string  `json:"source_id"`
	Position int     `json:"position"`
}

type QueryRAGResponse struct {
	Context     string           `json:"context"`
	UsedSources []string         `json:"used_sources"`
	SourceDocs  []SourceDocument `json:"source_docs"`
}

type ChatResponse struct {
	SessionID        string           `json:"session_id"`
	Answer           string           `json:"answer"`
	Intent           string           `json:"intent"`
	UsedSources      []string         `json:"used_sources"`
	SourceDocs       []SourceDocument `json:"source_docs"`
	ContextAvailable bool             `json:"context_available"`
	Lead             *LeadResponse    `json:"lead,omitempty"`
}

type LeadResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

type GetAllLeadsResponse struct {
	Count int            `json:"count"`
	Leads []LeadResponse `json:"leads"`
}

type CrawlResponse struct {
	StartURL string   `json:"start_url"`
	Visited  int      `json:"visited"`
	Admitted []string `json:"admitted"`
	Rejected []string `json:"rejected"`
	Failed   []string `json:"failed"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ScheduledCrawl struct {
	Tag     string    `json:"tag"`
	NextRun time.Time `json:"next_run"`
}

type ScheduledCrawlsResponse struct {
	Count     int              `json:"count"`
	Schedules []ScheduledCrawl `json:"schedules"`
}
