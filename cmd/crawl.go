package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	crawlDepth     int
	crawlPages     int
	crawlTopic     string
	crawlThreshold float64
	crawlRender    bool
	crawlJSON      bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [url]",
	Short: "Crawl a site and index its relevant pages",
	Long: `Crawls breadth first from the given URL (or CRAWL_START_URL), staying on the
same site, and indexes the pages that score above the relevance threshold
for the topic.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().IntVarP(&crawlDepth, "depth", "d", -1, "maximum link depth (default CRAWL_MAX_DEPTH)")
	crawlCmd.Flags().IntVarP(&crawlPages, "pages", "n", 0, "maximum pages to fetch (default CRAWL_MAX_PAGES)")
	crawlCmd.Flags().StringVar(&crawlTopic, "topic", "", "topic pages are scored against (default CRAWL_TOPIC)")
	crawlCmd.Flags().Float64Var(&crawlThreshold, "threshold", -1, "minimum relevance score (default CRAWL_RELEVANCE_THRESHOLD)")
	crawlCmd.Flags().BoolVar(&crawlRender, "render", false, "render the start page in a headless browser")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app) error {
		opts := a.crawlDefaults()
		if len(args) == 1 {
			opts.StartURL = args[0]
		}
		if opts.StartURL == "" {
			return errors.New("no URL given and CRAWL_START_URL is not set")
		}
		if crawlDepth >= 0 {
			opts.MaxDepth = crawlDepth
		}
		if crawlPages > 0 {
			opts.MaxPages = crawlPages
		}
		if crawlTopic != "" {
			opts.Topic = crawlTopic
		}
		if crawlThreshold >= 0 {
			opts.Threshold = crawlThreshold
		}
		if cmd.Flags().Changed("render") {
			opts.RenderJS = crawlRender
		}

		report, err := a.crawler.Crawl(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if crawlJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal report: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Printf("Visited %d pages from %s\n", report.Visited, report.StartURL)
		cmd.Printf("  admitted: %d\n  rejected: %d\n  failed:   %d\n", len(report.Admitted), len(report.Rejected), len(report.Failed))
		for _, u := range report.Admitted {
			cmd.Printf("  + %s\n", u)
		}
		return nil
	})
}
