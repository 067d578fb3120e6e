package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github/itish2003/admissions/controller"
	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/services"
)

const (
	scheduledCrawlTag = "scheduled-crawl"
	shutdownTimeout   = 30 * time.Second
)

var serveNoWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API. The watch directory is indexed on startup and kept in
sync while the server runs, and CRAWL_SCHEDULE re-crawls CRAWL_START_URL.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not scan or watch the watch directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		assistant, err := a.assistant(ctx)
		if err != nil {
			return err
		}

		if !serveNoWatch {
			go syncWatchDirectory(ctx, a.files)
		}

		var jobs controller.CrawlJobs
		if a.cfg.CrawlSchedule != "" {
			scheduler := services.NewCrawlScheduler(a.crawler)
			if err := scheduler.ScheduleCrawl(scheduledCrawlTag, a.cfg.CrawlSchedule, a.crawlDefaults()); err != nil {
				return err
			}
			scheduler.Start()
			defer scheduler.Stop()
			jobs = scheduler
		}

		if a.cfg.GinMode == gin.ReleaseMode {
			gin.SetMode(gin.ReleaseMode)
		}
		router := controller.NewRouter(
			controller.RouterConfig{
				CORSOrigins: a.cfg.CORSOrigins,
				RateLimit:   a.cfg.RateLimit,
				RateBurst:   a.cfg.RateBurst,
				Version:     version,
			},
			controller.NewRAGController(a.kb, a.files, a.uploads, a.crawler, a.crawlDefaults()),
			controller.NewAssistantController(assistant, a.catalog),
			controller.NewScheduleController(jobs),
		)

		srv := &http.Server{
			Addr:    ":" + a.cfg.Port,
			Handler: router,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("Server starting", "addr", "http://localhost:"+a.cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Server exited")
		return nil
	})
}

// syncWatchDirectory indexes what is already in the directory, then follows
// changes until ctx is done.
func syncWatchDirectory(ctx context.Context, files *services.FileIndexingService) {
	if _, err := files.ScanAndIndexDirectory(ctx); err != nil {
		logger.Error("Initial directory scan failed", "error", err)
	}
	if err := files.WatchDirectory(ctx); err != nil {
		logger.Error("Directory watcher stopped", "error", err)
	}
}
