package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"google.golang.org/genai"

	"github/itish2003/admissions/config"
	"github/itish2003/admissions/logger"
	"github/itish2003/admissions/rag"
	"github/itish2003/admissions/services"
)

const (
	breakerMaxFailures = 3
	breakerCooldown    = 30 * time.Second
)

// app is one explicitly wired pipeline with its collaborators.
type app struct {
	cfg       *config.Config
	kb        *rag.Pipeline
	catalog   *services.SQLiteCatalog
	embedder  rag.Embedder
	extractor *services.TextExtractor
	uploads   *services.UploadStore
	files     *services.FileIndexingService
	crawler   *services.Crawler

	gemini  *genai.Client
	closers []func() error
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	ready := false
	defer func() {
		if !ready {
			_ = a.Close()
		}
	}()

	var err error
	a.catalog, err = services.OpenSQLiteCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.catalog.Close)

	store, err := a.vectorStore(ctx)
	if err != nil {
		return nil, err
	}

	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		client, err := a.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		a.embedder = services.NewGeminiEmbedder(client, cfg.GeminiEmbeddingModel)
	default:
		httpClient := &http.Client{Timeout: cfg.CallTimeout}
		a.embedder = services.NewOllamaEmbedder(httpClient, cfg.OllamaURL, cfg.EmbeddingModel)
	}
	a.embedder = services.NewBreakerEmbedder(cfg.EmbeddingProvider+"-embeddings", a.embedder, breakerMaxFailures, breakerCooldown)

	a.kb, err = rag.NewPipeline(cfg.Pipeline(), a.embedder, store, a.catalog)
	if err != nil {
		return nil, err
	}

	a.uploads, err = services.NewUploadStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	a.extractor = services.NewTextExtractor(cfg.UnidocLicenseKey)
	a.files = services.NewFileIndexingService(a.kb, a.extractor, cfg.WatchDir)
	a.crawler = services.NewCrawler(a.kb, a.embedder)

	logger.Info("Pipeline ready",
		"vector_backend", cfg.VectorBackend,
		"embeddings", cfg.EmbeddingProvider,
		"catalog", a.catalog.Path())
	ready = true
	return a, nil
}

func (a *app) vectorStore(ctx context.Context) (rag.VectorStore, error) {
	if a.cfg.VectorBackend == config.BackendMemory {
		logger.Warn("Using the in-memory vector store, the index is lost on exit")
		return rag.NewMemoryStore(), nil
	}

	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(a.cfg.ChromaURL))
	if err != nil {
		return nil, fmt.Errorf("%w: creating chroma client: %w", rag.ErrStoreUnavailable, err)
	}
	a.closers = append(a.closers, client.Close)

	collection, err := services.OpenChromaCollection(ctx, client, a.cfg.CollectionName)
	if err != nil {
		return nil, err
	}
	return services.NewChromaStore(collection), nil
}

func (a *app) geminiClient(ctx context.Context) (*genai.Client, error) {
	if a.gemini != nil {
		return a.gemini, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	logger.Info("Successfully connected to Google Gemini")
	a.gemini = client
	return client, nil
}

func (a *app) completer(ctx context.Context) (services.Completer, error) {
	if a.cfg.LLMProvider == config.ProviderGemini {
		client, err := a.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return services.NewGeminiCompleter(client, a.cfg.GeminiModel), nil
	}
	return services.NewOllamaCompleter(a.cfg.OllamaURL, a.cfg.OllamaLLMModel)
}

func (a *app) assistant(ctx context.Context) (services.AssistantService, error) {
	completer, err := a.completer(ctx)
	if err != nil {
		return nil, err
	}
	return services.NewAssistantService(a.kb, completer, a.catalog, a.cfg.HistoryTurns), nil
}

// crawlDefaults are the crawl options taken from the configuration.
func (a *app) crawlDefaults() services.CrawlOptions {
	return services.CrawlOptions{
		StartURL:       a.cfg.CrawlStartURL,
		MaxDepth:       a.cfg.CrawlMaxDepth,
		MaxPages:       a.cfg.CrawlMaxPages,
		Topic:          a.cfg.CrawlTopic,
		Threshold:      a.cfg.CrawlThreshold,
		RenderJS:       a.cfg.CrawlRenderJS,
		Delay:          a.cfg.CrawlDelay,
		RequestTimeout: a.cfg.CallTimeout,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp builds the app for one command and closes it afterwards.
func withApp(ctx context.Context, run func(a *app) error) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to release resources", "error", err)
		}
	}()
	return run(a)
}
