package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/admissions/models"
	"github/itish2003/admissions/services"
)

// AssistantController handles the chat and lead endpoints.
type AssistantController struct {
	assistant services.AssistantService
	leads     services.LeadStore
}

func NewAssistantController(assistant services.AssistantService, leads services.LeadStore) *AssistantController {
	return &AssistantController{assistant: assistant, leads: leads}
}

// Chat is the Gin handler for POST /api/v1/chat.
func (c *AssistantController) Chat(ctx *gin.Context) {
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(ctx, "Invalid request body", err.Error())
		return
	}

	reply, err := c.assistant.Chat(ctx.Request.Context(), services.ChatRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		RespondWithServiceError(ctx, "Failed to generate AI response", err)
		return
	}

	resp := models.ChatResponse{
		SessionID:        reply.SessionID,
		Answer:           reply.Answer,
		Intent:           reply.Intent.String(),
		UsedSources:      reply.UsedSources,
		SourceDocs:       sourceDocs(reply.Sources),
		ContextAvailable: reply.ContextAvailable,
	}
	if reply.Lead != nil {
		lead := leadResponse(*reply.Lead)
		resp.Lead = &lead
	}
	ctx.JSON(http.StatusOK, resp)
}

// ResetChat is the Gin handler for DELETE /api/v1/chat/:session_id.
func (c *AssistantController) ResetChat(ctx *gin.Context) {
	c.assistant.ResetSession(ctx.Param("session_id"))
	ctx.Status(http.StatusNoContent)
}

// GetAllLeads is the Gin handler for GET /api/v1/leads.
func (c *AssistantController) GetAllLeads(ctx *gin.Context) {
	leads, err := c.leads.ListLeads(ctx.Request.Context())
	if err != nil {
		RespondWithServiceError(ctx, "Failed to retrieve leads", err)
		return
	}
	out := make([]models.LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, leadResponse(l))
	}
	ctx.JSON(http.StatusOK, models.GetAllLeadsResponse{Count: len(out), Leads: out})
}

// CreateLead is the Gin handler for POST /api/v1/leads.
func (c *AssistantController) CreateLead(ctx *gin.Context) {
	var req models.CreateLeadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		RespondWithBadRequest(ctx, "Invalid request body", err.Error())
		return
	}
	lead, err := c.leads.SaveLead(ctx.Request.Context(), services.Lead{
		Name:  req.Name,
		Email: req.Email,
		Topic: req.Topic,
	})
	if err != nil {
		RespondWithServiceError(ctx, "Failed to save lead", err)
		return
	}
	ctx.JSON(http.StatusCreated, leadResponse(lead))
}

// ClearLeads is the Gin handler for DELETE /api/v1/leads.
func (c *AssistantController) ClearLeads(ctx *gin.Context) {
	if err := c.leads.ClearLeads(ctx.Request.Context()); err != nil {
		RespondWithServiceError(ctx, "Failed to clear leads", err)
		return
	}
	ctx.JSON(http.StatusOK, models.MessageResponse{Message: "All leads cleared"})
}

func leadResponse(l services.Lead) models.LeadResponse {
	return models.LeadResponse{
		ID:        l.ID,
		Name:      l.Name,
		Email:     l.Email,
		Topic:     l.Topic,
		Timestamp: l.CreatedAt,
	}
}
