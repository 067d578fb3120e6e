package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the HTTP settings of the API.
type RouterConfig struct {
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
	Version     string
}

// NewRouter builds the gin engine with every API route. The chat, query and
// crawl endpoints are rate limited per client.
func NewRouter(cfg RouterConfig, rag *RAGController, assistant *AssistantController, schedules *ScheduleController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Admissions Assistant API",
			"version": cfg.Version,
		})
	})

	limited := RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/documents", rag.IngestDocument)
		apiV1.POST("/documents/upload", rag.UploadDocument)
		apiV1.GET("/documents", rag.GetAllSources)
		apiV1.DELETE("/documents", rag.DeleteSource)
		apiV1.DELETE("/knowledge-base", rag.ClearKnowledgeBase)
		apiV1.POST("/crawl", limited, rag.Crawl)
		apiV1.POST("/query", limited, rag.QueryRAG)
		apiV1.GET("/crawl/schedules", schedules.ListSchedules)
		apiV1.POST("/crawl/schedules/:tag/run", limited, schedules.RunSchedule)
		apiV1.DELETE("/crawl/schedules/:tag", schedules.DeleteSchedule)

		apiV1.POST("/chat", limited, assistant.Chat)
		apiV1.DELETE("/chat/:session_id", assistant.ResetChat)
		apiV1.GET("/leads", assistant.GetAllLeads)
		apiV1.POST("/leads", assistant.CreateLead)
		apiV1.DELETE("/leads", assistant.ClearLeads)
	}
	return router
}
