package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/rag"
)

const (
	crawlerUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	minPageWords     = 10
	renderTimeout    = 45 * time.Second
)

// CrawlOptions configures one crawl. MaxDepth 0 fetches only the start page.
type CrawlOptions struct {
	StartURL       string
	MaxDepth       int
	MaxPages       int
	Topic          string
	Threshold      float64
	RenderJS       bool
	Delay          time.Duration
	RequestTimeout time.Duration
}

// CrawledPage is the main content of one fetched page.
type CrawledPage struct {
	URL     string
	Title   string
	Content string
	Depth   int
}

// Text is what gets ingested for the page.
func (p CrawledPage) Text() string {
	if p.Title == "" {
		return p.Content
	}
	return p.Title + "\n\n" + p.Content
}

// CrawlReport lists what happened to every page of a crawl.
type CrawlReport struct {
	StartURL string   `json:"start_url"`
	Visited  int      `json:"visited"`
	Admitted []string `json:"admitted"`
	Rejected []string `json:"rejected"`
	Failed   []string `json:"failed"`
}

// Crawler walks a site breadth first, keeps the pages relevant to a topic
// and ingests them with origin crawl and the normalised URL as source id.
type Crawler struct {
	kb        KnowledgeBase
	embedder  rag.Embedder
	transport http.RoundTripper
	render    func(ctx context.Context, pageURL string) (string, error)
}

// NewCrawler builds a crawler. With a nil embedder pages are always scored
// by keyword.
func NewCrawler(kb KnowledgeBase, embedder rag.Embedder) *Crawler {
	return &Crawler{
		kb:        kb,
		embedder:  embedder,
		transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		render:    renderPageHTML,
	}
}

// Crawl fetches, filters and ingests pages. Per-page failures are recorded
// in the report; an error is returned only when the crawl cannot start or
// the start page cannot be fetched.
func (c *Crawler) Crawl(ctx context.Context, opts CrawlOptions) (*CrawlReport, error) {
	pages, err := c.Collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	startURL, _ := normalizeURL(opts.StartURL)
	report := &CrawlReport{
		StartURL: startURL,
		Visited:  len(pages),
		Admitted: []string{},
		Rejected: []string{},
		Failed:   []string{},
	}
	scorer := c.scorerFor(opts.Topic)
	for _, page := range pages {
		log := logger.With("url", page.URL, "depth", page.Depth)

		score, err := scorer.Score(ctx, page)
		if err != nil {
			log.WithError(err).Warn("Could not score page")
			report.Failed = append(report.Failed, page.URL)
			continue
		}
		if !rag.Admit(score, opts.Threshold) {
			log.WithField("score", score).Info("Skipping irrelevant page")
			report.Rejected = append(report.Rejected, page.URL)
			continue
		}

		if _, err := c.kb.Ingest(ctx, rag.Document{
			SourceID: page.URL,
			Origin:   rag.OriginCrawl,
			Text:     page.Text(),
		}); err != nil {
			log.WithError(err).Error("Failed to ingest page")
			report.Failed = append(report.Failed, page.URL)
			continue
		}
		log.WithField("score", score).Info("Keeping relevant page")
		report.Admitted = append(report.Admitted, page.URL)
	}
	return report, nil
}

// Collect fetches pages breadth first without ingesting them.
func (c *Crawler) Collect(ctx context.Context, opts CrawlOptions) ([]CrawledPage, error) {
	startURL, err := normalizeURL(opts.StartURL)
	if err != nil {
		return nil, fmt.Errorf("%w: start url %q: %v", rag.ErrInvalidInput, opts.StartURL, err)
	}
	start, _ := url.Parse(startURL)
	if start.Scheme != "http" && start.Scheme != "https" || start.Host == "" {
		return nil, fmt.Errorf("%w: start url must be an absolute http(s) url, got %q", rag.ErrInvalidInput, opts.StartURL)
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}

	collector := c.newCollector(opts)

	var (
		pages    []CrawledPage
		found    []string
		current  int
		startErr error
		seen     = map[string]bool{startURL: true}
	)

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL, err := normalizeURL(e.Request.URL.String())
		if err != nil {
			return
		}
		page, links := extractPage(e.DOM, e.Request.URL, start.Hostname())
		page.URL = pageURL
		page.Depth = current
		found = append(found, links...)
		if len(strings.Fields(page.Content)) < minPageWords {
			logger.Debug("Skipping page with too little content", "url", pageURL)
			return
		}
		pages = append(pages, page)
	})

	collector.OnError(func(r *colly.Response, err error) {
		requestURL, _ := normalizeURL(r.Request.URL.String())
		logger.Warn("Crawl request failed", "url", requestURL, "status", r.StatusCode, "error", err)
		if requestURL == startURL {
			startErr = fmt.Errorf("fetching start page %s: %w", startURL, err)
		}
	})

	frontier := []string{startURL}
	for depth := 0; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		current = depth
		var next []string
		for _, link := range frontier {
			if len(pages) >= opts.MaxPages {
				break
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			found = found[:0]
			rendered := depth == 0 && opts.RenderJS && c.visitRendered(ctx, link, start.Hostname(), &pages, &found)
			if !rendered {
				if err := collector.Visit(link); err != nil && !errors.As(err, new(*colly.AlreadyVisitedError)) {
					logger.Debug("Visit refused", "url", link, "error", err)
				}
			}

			for _, l := range found {
				if !seen[l] {
					seen[l] = true
					next = append(next, l)
				}
			}
		}
		frontier = next
	}

	if startErr != nil && len(pages) == 0 {
		return nil, startErr
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no readable content found from %s", startURL)
	}
	logger.Info("Crawl collected pages", "start_url", startURL, "pages", len(pages))
	return pages, nil
}

func (c *Crawler) newCollector(opts CrawlOptions) *colly.Collector {
	collector := colly.NewCollector(
		colly.UserAgent(crawlerUserAgent),
		colly.MaxBodySize(10*1024*1024),
	)
	if c.transport != nil {
		collector.WithTransport(c.transport)
	}
	if opts.RequestTimeout > 0 {
		collector.SetRequestTimeout(opts.RequestTimeout)
	} else {
		collector.SetRequestTimeout(60 * time.Second)
	}
	if opts.Delay > 0 {
		_ = collector.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       opts.Delay,
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9,fr;q=0.8")
		r.Headers.Set("Accept-Encoding", "gzip, br")
	})

	collector.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		var bodyReader io.Reader = bytes.NewReader(r.Body)

		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			decompressed, err := io.ReadAll(brotli.NewReader(bodyReader))
			if err != nil {
				logger.Warn("Could not decode brotli body", "url", r.Request.URL.String(), "error", err)
				return
			}
			r.Body = decompressed
			bodyReader = bytes.NewReader(decompressed)
		}

		// colly already converts charsets declared in the header; pages that
		// only declare one in a meta tag are decoded here.
		if len(r.Body) > 0 && !strings.Contains(strings.ToLower(contentType), "charset") {
			utf8Reader, err := charset.NewReader(bodyReader, contentType)
			if err == nil {
				if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
					r.Body = decoded
				}
			}
		}
	})
	return collector
}

// visitRendered loads pageURL in a headless browser. It reports false when
// rendering fails or yields too little content, so the caller falls back to
// a plain fetch.
func (c *Crawler) visitRendered(ctx context.Context, pageURL, host string, pages *[]CrawledPage, found *[]string) bool {
	if c.render == nil {
		return false
	}
	html, err := c.render(ctx, pageURL)
	if err != nil {
		logger.Warn("JS render failed, falling back to plain fetch", "url", pageURL, "error", err)
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	base, _ := url.Parse(pageURL)
	page, links := extractPage(doc.Selection, base, host)
	if len(strings.Fields(page.Content)) < minPageWords {
		return false
	}
	page.URL = pageURL
	*pages = append(*pages, page)
	*found = append(*found, links...)
	return true
}

// extractPage reads the title, main content and crawlable links of a page.
func extractPage(dom *goquery.Selection, pageURL *url.URL, host string) (CrawledPage, []string) {
	page := CrawledPage{
		Title:   strings.TrimSpace(dom.Find("title").First().Text()),
		Content: extractMainContent(dom),
	}

	var links []string
	dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		hrefLower := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(hrefLower, "javascript:") ||
			strings.HasPrefix(hrefLower, "mailto:") ||
			strings.HasPrefix(hrefLower, "tel:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		normalized, err := normalizeURL(pageURL.ResolveReference(ref).String())
		if err != nil || !isURLAllowed(normalized, host) {
			return
		}
		links = append(links, normalized)
	})
	return page, links
}

// extractMainContent returns the visible text of the main content area,
// one trimmed line per text line.
func extractMainContent(selection *goquery.Selection) string {
	doc := selection.Clone()
	doc.Find("script, style, noscript, nav, footer, header, aside, form, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link, .cookie-banner").Remove()

	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".main-content",
		".content",
		"#content",
		"body",
	}

	var content strings.Builder
	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				content.WriteString(text)
				content.WriteString("\n")
			}
		})
		if content.Len() > 0 {
			break
		}
	}
	if content.Len() == 0 {
		content.WriteString(doc.Text())
	}

	var cleanedLines []string
	for _, line := range strings.Split(content.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}
	return strings.Join(cleanedLines, "\n")
}

// normalizeURL makes URLs comparable: no fragment, lower-case scheme and
// host, no default port and no trailing slash except for the root.
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if (parsed.Port() == "80" && parsed.Scheme == "http") || (parsed.Port() == "443" && parsed.Scheme == "https") {
		parsed.Host = parsed.Hostname()
	}

	switch path := parsed.Path; {
	case path == "":
		parsed.Path = "/"
	case path != "/":
		parsed.Path = strings.TrimSuffix(path, "/")
		if parsed.Path == "" {
			parsed.Path = "/"
		}
	}
	parsed.RawPath = ""
	return parsed.String(), nil
}

var excludedPatterns = []string{
	"/wp-json/", "/api/", "/ajax/", "/feed/", "/rss/", "/atom/",
	"/wp-admin/", "/wp-includes/", "/search?", "/?s=",
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp",
	".css", ".js", ".xml", ".zip", ".mp4",
}

// isURLAllowed keeps http(s) links on the crawled site, treating the www.
// prefix as the same host, and drops assets and machine endpoints.
func isURLAllowed(urlStr, host string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	hostname := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	allowed := strings.TrimPrefix(strings.ToLower(host), "www.")
	if hostname != allowed {
		return false
	}

	pathLower := strings.ToLower(parsed.Path)
	queryLower := strings.ToLower(parsed.RawQuery)
	for _, pattern := range excludedPatterns {
		if strings.Contains(pathLower, pattern) || strings.Contains(queryLower, pattern) {
			return false
		}
	}
	return true
}

// renderPageHTML loads a page in headless Chrome and returns the rendered
// document once the body is ready.
func renderPageHTML(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(crawlerUserAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", pageURL, err)
	}
	return html, nil
}
