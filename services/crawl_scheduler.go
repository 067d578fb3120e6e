package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github/itish2003/admissions/logger"
)

var ErrCrawlJobNotFound = errors.New("scheduled crawl not found")

type crawlRunner interface {
	Crawl(ctx context.Context, opts CrawlOptions) (*CrawlReport, error)
}

// CrawlScheduler re-crawls sites on cron schedules.
type CrawlScheduler struct {
	scheduler *gocron.Scheduler
	crawler   crawlRunner
	ctx       context.Context
	cancel    context.CancelFunc
}

// ScheduledCrawl describes one registered job.
type ScheduledCrawl struct {
	Tag     string    `json:"tag"`
	NextRun time.Time `json:"next_run"`
}

func NewCrawlScheduler(crawler crawlRunner) *CrawlScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &CrawlScheduler{
		scheduler: s,
		crawler:   crawler,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *CrawlScheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels crawls still running.
func (s *CrawlScheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// ScheduleCrawl registers a crawl under a unique tag. A run that is still
// going when the next one is due makes the next one wait.
func (s *CrawlScheduler) ScheduleCrawl(tag, cronExpr string, opts CrawlOptions) error {
	_, err := s.scheduler.Cron(cronExpr).SingletonMode().Tag(tag).Do(func() {
		s.runCrawl(tag, opts)
	})
	if err != nil {
		return fmt.Errorf("scheduling crawl %q with %q: %w", tag, cronExpr, err)
	}
	logger.Info("Crawl scheduled", "tag", tag, "cron", cronExpr, "url", opts.StartURL)
	return nil
}

// RunNow triggers a scheduled crawl immediately.
func (s *CrawlScheduler) RunNow(tag string) error {
	if err := s.scheduler.RunByTag(tag); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrCrawlJobNotFound, tag, err)
	}
	return nil
}

func (s *CrawlScheduler) RemoveJob(tag string) error {
	if err := s.scheduler.RemoveByTag(tag); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrCrawlJobNotFound, tag, err)
	}
	logger.Info("Crawl unscheduled", "tag", tag)
	return nil
}

// Jobs lists registered crawls.
func (s *CrawlScheduler) Jobs() []ScheduledCrawl {
	jobs := s.scheduler.Jobs()
	out := make([]ScheduledCrawl, 0, len(jobs))
	for _, j := range jobs {
		tag := ""
		if tags := j.Tags(); len(tags) > 0 {
			tag = tags[0]
		}
		out = append(out, ScheduledCrawl{Tag: tag, NextRun: j.NextRun()})
	}
	return out
}

func (s *CrawlScheduler) runCrawl(tag string, opts CrawlOptions) {
	log := logger.With("tag", tag, "url", opts.StartURL)
	log.Info("Running scheduled crawl")

	report, err := s.crawler.Crawl(s.ctx, opts)
	if err != nil {
		log.WithError(err).Error("Scheduled crawl failed")
		return
	}
	log.WithFields(map[string]any{
		"visited":  report.Visited,
		"admitted": len(report.Admitted),
		"rejected": len(report.Rejected),
		"failed":   len(report.Failed),
	}).Info("Scheduled crawl finished")
}
