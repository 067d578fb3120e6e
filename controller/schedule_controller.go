package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/admissions/models"
	"github/itish2003/admissions/services"
)

// CrawlJobs is the part of the crawl scheduler the API exposes.
type CrawlJobs interface {
	Jobs() []services.ScheduledCrawl
	RunNow(tag string) error
	RemoveJob(tag string) error
}

// ScheduleController lists and triggers scheduled crawls. A nil CrawlJobs
// means nothing is scheduled.
type ScheduleController struct {
	jobs CrawlJobs
}

func NewScheduleController(jobs CrawlJobs) *ScheduleController {
	return &ScheduleController{jobs: jobs}
}

// ListSchedules is the Gin handler for GET /api/v1/crawl/schedules.
func (c *ScheduleController) ListSchedules(ctx *gin.Context) {
	schedules := []models.ScheduledCrawl{}
	if c.jobs != nil {
		for _, job := range c.jobs.Jobs() {
			schedules = append(schedules, models.ScheduledCrawl{Tag: job.Tag, NextRun: job.NextRun})
		}
	}
	ctx.JSON(http.StatusOK, models.ScheduledCrawlsResponse{Count: len(schedules), Schedules: schedules})
}

// RunSchedule is the Gin handler for POST /api/v1/crawl/schedules/:tag/run.
// The crawl runs in the background.
func (c *ScheduleController) RunSchedule(ctx *gin.Context) {
	tag := ctx.Param("tag")
	if err := c.run(tag); err != nil {
		RespondWithServiceError(ctx, "Failed to run scheduled crawl", err)
		return
	}
	ctx.JSON(http.StatusAccepted, models.MessageResponse{Message: "Scheduled crawl " + tag + " started"})
}

// DeleteSchedule is the Gin handler for DELETE /api/v1/crawl/schedules/:tag.
func (c *ScheduleController) DeleteSchedule(ctx *gin.Context) {
	tag := ctx.Param("tag")
	if err := c.remove(tag); err != nil {
		RespondWithServiceError(ctx, "Failed to remove scheduled crawl", err)
		return
	}
	ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Scheduled crawl " + tag + " removed"})
}

func (c *ScheduleController) run(tag string) error {
	if c.jobs == nil {
		return services.ErrCrawlJobNotFound
	}
	return c.jobs.RunNow(tag)
}

func (c *ScheduleController) remove(tag string) error {
	if c.jobs == nil {
		return services.ErrCrawlJobNotFound
	}
	return c.jobs.RemoveJob(tag)
}
