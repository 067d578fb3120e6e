package controller

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/models"
	"github/itish2003/admissions/rag"
	"github/itish2003/admissions/services"
)

// KnowledgeBase is what the controller needs from the retrieval pipeline.
type KnowledgeBase interface {
	services.KnowledgeBase
	Clear(ctx context.Context) error
	EntryCount(ctx context.Context) (int, error)
}

type FileIngester interface {
	IngestFile(ctx context.Context, path string) (*rag.IngestResult, error)
}

type SiteCrawler interface {
	Crawl(ctx context.Context, opts services.CrawlOptions) (*services.CrawlReport, error)
}

// RAGController handles the knowledge base endpoints: documents, uploads,
// crawls and raw retrieval.
type RAGController struct {
	kb            KnowledgeBase
	files         FileIngester
	uploads       *services.UploadStore
	crawler       SiteCrawler
	crawlDefaults services.CrawlOptions
}

// NewRAGController wires the handlers. crawlDefaults supplies every crawl
// option a request leaves out.
func NewRAGController(kb KnowledgeBase, files FileIngester, uploads *services.UploadStore, crawler SiteCrawler, crawlDefaults services.CrawlOptions) *RAGController {
	return &RAGController{
		kb:            kb,
		files:         files,
		uploads:       uploads,
		crawler:       crawler,
		crawlDefaults: crawlDefaults,
	}
}

// IngestDocument is the Gin handler for POST /api/v1/documents.
func (c *RAGController) IngestDocument(ctx *gin.Context) {
	var req models.IngestDocumentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(ctx, "Invalid request body", err.Error())
		return
	}
	origin, err := rag.ParseOrigin(req.Origin)
	if err != nil {
		RespondWithBadRequest(ctx, "Invalid origin", err.Error())
		return
	}

	result, err := c.kb.Ingest(ctx.Request.Context(), rag.Document{
		SourceID: strings.TrimSpace(req.SourceID),
		Origin:   origin,
		Text:     req.Text,
	})
	if err != nil {
		RespondWithServiceError(ctx, "Failed to ingest document", err)
		return
	}
	ctx.JSON(http.StatusCreated, ingestResponse(result))
}

// UploadDocument is the Gin handler for POST /api/v1/documents/upload. The
// multipart field is "file".
func (c *RAGController) UploadDocument(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		RespondWithBadRequest(ctx, "A multipart field named 'file' is required", err.Error())
		return
	}
	if !services.SupportedExtension(header.Filename) {
		RespondWithBadRequest(ctx, "Unsupported file type", filepath.Ext(header.Filename))
		return
	}

	src, err := header.Open()
	if err != nil {
		RespondWithServiceError(ctx, "Failed to read upload", err)
		return
	}
	defer src.Close()

	upload, err := c.uploads.Save(header.Filename, src)
	if err != nil {
		RespondWithServiceError(ctx, "Failed to store upload", err)
		return
	}

	result, err := c.files.IngestFile(ctx.Request.Context(), upload.Path)
	if err != nil {
		if rbErr := upload.Rollback(); rbErr != nil {
			logger.Warn("Could not restore upload directory after failed ingestion", "file", upload.Path, "error", rbErr)
		}
		RespondWithServiceError(ctx, "Failed to ingest upload", err)
		return
	}
	if err := upload.Commit(); err != nil {
		logger.Warn("Could not remove replaced upload", "file", upload.Path, "error", err)
	}
	ctx.JSON(http.StatusCreated, ingestResponse(result))
}

// GetAllSources is the Gin handler for GET /api/v1/documents.
func (c *RAGController) GetAllSources(ctx *gin.Context) {
	records, err := c.kb.Sources(ctx.Request.Context())
	if err != nil {
		RespondWithServiceError(ctx, "Failed to list sources", err)
		return
	}
	entries, err := c.kb.EntryCount(ctx.Request.Context())
	if err != nil {
		RespondWithServiceError(ctx, "Failed to count entries", err)
		return
	}

	summaries := make([]models.SourceSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, models.SourceSummary{
			SourceID:    rec.SourceID,
			Origin:      string(rec.Origin),
			ContentHash: rec.ContentHash,
			ChunkCount:  rec.ChunkCount,
			IngestedAt:  rec.IngestedAt,
		})
	}
	ctx.JSON(http.StatusOK, models.GetAllSourcesResponse{
		Count:   len(summaries),
		Entries: entries,
		Sources: summaries,
	})
}

// DeleteSource is the Gin handler for DELETE /api/v1/documents?source_id=.
// Deleting an uploaded source also removes its stored file so a later
// directory scan does not bring it back.
func (c *RAGController) DeleteSource(ctx *gin.Context) {
	sourceID := strings.TrimSpace(ctx.Query("source_id"))
	if sourceID == "" {
		RespondWithBadRequest(ctx, "Query parameter 'source_id' is required", nil)
		return
	}

	rec, err := c.kb.Source(ctx.Request.Context(), sourceID)
	if err != nil {
		RespondWithServiceError(ctx, "Failed to delete source", err)
		return
	}
	if err := c.kb.DeleteSource(ctx.Request.Context(), sourceID); err != nil {
		RespondWithServiceError(ctx, "Failed to delete source", err)
		return
	}

	if rec.Origin == rag.OriginUpload && services.SupportedExtension(sourceID) && !strings.ContainsAny(sourceID, `/\`) {
		if err := c.uploads.Delete(sourceID); err != nil {
			logger.Warn("Could not remove uploaded file", "source_id", sourceID, "error", err)
		}
	}
	ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Source " + sourceID + " deleted"})
}

// ClearKnowledgeBase is the Gin handler for DELETE /api/v1/knowledge-base.
func (c *RAGController) ClearKnowledgeBase(ctx *gin.Context) {
	if err := c.kb.Clear(ctx.Request.Context()); err != nil {
		RespondWithServiceError(ctx, "Failed to clear knowledge base", err)
		return
	}
	ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Knowledge base cleared"})
}

// QueryRAG is the Gin handler for POST /api/v1/query. It returns the
// assembled context without generating an answer.
func (c *RAGController) QueryRAG(ctx *gin.Context) {
	var req models.QueryTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(ctx, "Invalid request body", err.Error())
		return
	}

	result, err := c.kb.Query(ctx.Request.Context(), req.Query)
	if err != nil {
		RespondWithServiceError(ctx, "Failed to retrieve context", err)
		return
	}
	ctx.JSON(http.StatusOK, models.QueryRAGResponse{
		Context:     result.Context,
		UsedSources: result.UsedSources,
		SourceDocs:  sourceDocs(result.Items),
	})
}

// Crawl is the Gin handler for POST /api/v1/crawl. The crawl runs within
// the request.
func (c *RAGController) Crawl(ctx *gin.Context) {
	var req models.CrawlRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(ctx, "Invalid request body", err.Error())
		return
	}

	opts := c.crawlDefaults
	opts.StartURL = req.URL
	if req.MaxDepth != nil {
		opts.MaxDepth = *req.MaxDepth
	}
	if req.MaxPages > 0 {
		opts.MaxPages = req.MaxPages
	}
	if req.Topic != "" {
		opts.Topic = req.Topic
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.RenderJS != nil {
		opts.RenderJS = *req.RenderJS
	}
	if opts.MaxDepth < 0 {
		RespondWithBadRequest(ctx, "max_depth must not be negative", nil)
		return
	}

	report, err := c.crawler.Crawl(ctx.Request.Context(), opts)
	if err != nil {
		RespondWithServiceError(ctx, "Crawl failed", err)
		return
	}
	ctx.JSON(http.StatusOK, models.CrawlResponse{
		StartURL: report.StartURL,
		Visited:  report.Visited,
		Admitted: report.Admitted,
		Rejected: report.Rejected,
		Failed:   report.Failed,
	})
}

func ingestResponse(result *rag.IngestResult) models.IngestDocumentResponse {
	return models.IngestDocumentResponse{
		Message:  "Source ingested successfully",
		SourceID: result.SourceID,
		Chunks:   result.Chunks,
		State:    result.State.String(),
	}
}

func sourceDocs(items []rag.QueryResultItem) []models.SourceDocument {
	docs := make([]models.SourceDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, models.SourceDocument{
			Text:     item.Text,
			Score:    item.Score,
			SourceID: item.Metadata.SourceID,
			Position: item.Metadata.Position,
		})
	}
	return docs
}
