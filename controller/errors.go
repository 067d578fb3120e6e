package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/models"
	"github/itish2003/admissions/rag"
	"github/itish2003/admissions/services"
)

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, models.ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithServiceError maps an error from the knowledge base or the
// assistant to a status code and error code.
func RespondWithServiceError(c *gin.Context, message string, err error) {
	status, code := errorStatus(err)

	var details interface{}
	var ingestErr *rag.IngestionFailedError
	if errors.As(err, &ingestErr) {
		details = gin.H{"source_id": ingestErr.SourceID, "stage": ingestErr.Stage.String()}
	}

	log := logger.With("path", c.FullPath(), "status", status, "error_code", code).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error(message)
	} else {
		log.Warn(message)
	}
	if details == nil && status < http.StatusInternalServerError {
		details = err.Error()
	}
	RespondWithError(c, status, code, message, details)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrEmptyDocument):
		return http.StatusBadRequest, "empty_document"
	case errors.Is(err, rag.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidLead),
		errors.Is(err, services.ErrInvalidFilename):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, rag.ErrSourceNotFound),
		errors.Is(err, services.ErrCrawlJobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, rag.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "embedding_unavailable"
	case errors.Is(err, rag.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, services.ErrLLMUnavailable):
		return http.StatusServiceUnavailable, "llm_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
