package models

// IngestDocumentRequest adds raw text to the knowledge base.
type IngestDocumentRequest struct {
	SourceID string `json:"source_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
	Origin   string `json:"origin,omitempty"`
}

type QueryTextRequest struct {
	Query string `json:"query" binding:"required"`
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// CrawlRequest starts a crawl. Zero values fall back to the configured
// crawl defaults.
type CrawlRequest struct {
	URL       string   `json:"url" binding:"required"`
	MaxDepth  *int     `json:"max_depth,omitempty"`
	MaxPages  int      `json:"max_pages,omitempty"`
	Topic     string   `json:"topic,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	RenderJS  *bool    `json:"render_js,omitempty"`
}

type CreateLeadRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Topic string `json:"topic,omitempty"`
}
