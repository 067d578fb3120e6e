package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github/itish2003/admissions/rag"
)

const (
	BackendChroma = "chroma"
	BackendMemory = "memory"

	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Config holds every setting of the service. Values come from the
// environment first, then from the optional TOML file, then from defaults.
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
	RateLimit   float64 // requests per second per client on chat endpoints
	RateBurst   int

	DataDir     string
	UploadDir   string
	WatchDir    string
	CatalogPath string

	VectorBackend  string
	ChromaURL      string
	CollectionName string

	EmbeddingProvider    string
	OllamaURL            string
	EmbeddingModel       string
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string

	LLMProvider    string
	OllamaLLMModel string

	ChunkMaxSize       int
	ChunkOverlap       int
	TopK               int
	RelevanceThreshold float64
	MaxContextLength   int
	CallTimeout        time.Duration
	HistoryTurns       int

	UnidocLicenseKey string

	CrawlStartURL  string
	CrawlMaxDepth  int
	CrawlMaxPages  int
	CrawlTopic     string
	CrawlThreshold float64
	CrawlRenderJS  bool
	CrawlDelay     time.Duration
	CrawlSchedule  string
}

// Load reads envFile (when it exists), then configFile (when it exists), and
// builds a validated Config.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("error loading %s: %w", envFile, err)
			}
		}
	}

	src := &source{}
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &src.file); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", configFile, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading %s: %w", configFile, err)
		}
	}

	dataDir := src.getEnv("DATA_DIR", "data")
	uploadDir := src.getEnv("UPLOAD_DIR", dataDir+"/raw")

	cfg := &Config{
		Port:        src.getEnv("PORT", "8080"),
		GinMode:     src.getEnv("GIN_MODE", "release"),
		LogLevel:    src.getEnv("LOG_LEVEL", "info"),
		LogFormat:   src.getEnv("LOG_FORMAT", "text"),
		CORSOrigins: splitList(src.getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		RateLimit:   src.getEnvFloat64("RATE_LIMIT_RPS", 2),
		RateBurst:   src.getEnvInt("RATE_LIMIT_BURST", 5),

		DataDir:     dataDir,
		UploadDir:   uploadDir,
		WatchDir:    src.getEnv("WATCH_DIR", uploadDir),
		CatalogPath: src.getEnv("CATALOG_PATH", dataDir+"/catalog.db"),

		VectorBackend:  strings.ToLower(src.getEnv("VECTOR_BACKEND", BackendChroma)),
		ChromaURL:      src.getEnv("CHROMA_URL", "http://localhost:8000"),
		CollectionName: src.getEnv("CHROMA_COLLECTION", "admissions"),

		EmbeddingProvider:    strings.ToLower(src.getEnv("EMBEDDINGS_PROVIDER", ProviderOllama)),
		OllamaURL:            src.getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel:       src.getEnv("OLLAMA_EMBED_MODEL", "qwen3-embedding:0.6b"),
		GeminiAPIKey:         src.getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          src.getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiEmbeddingModel: src.getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),

		LLMProvider:    strings.ToLower(src.getEnv("LLM_PROVIDER", ProviderOllama)),
		OllamaLLMModel: src.getEnv("OLLAMA_LLM_MODEL", "llama3.1:8b"),

		ChunkMaxSize:       src.getEnvInt("CHUNK_MAX_SIZE", 800),
		ChunkOverlap:       src.getEnvInt("CHUNK_OVERLAP", 80),
		TopK:               src.getEnvInt("TOP_K", 5),
		RelevanceThreshold: src.getEnvFloat64("RELEVANCE_THRESHOLD", 0.5),
		MaxContextLength:   src.getEnvInt("MAX_CONTEXT_LENGTH", 4000),
		CallTimeout:        src.getEnvDuration("CALL_TIMEOUT", 30*time.Second),
		HistoryTurns:       src.getEnvInt("HISTORY_TURNS", 6),

		UnidocLicenseKey: src.getEnv("UNIDOC_LICENSE_KEY", ""),

		CrawlStartURL:  src.getEnv("CRAWL_START_URL", ""),
		CrawlMaxDepth:  src.getEnvInt("CRAWL_MAX_DEPTH", 1),
		CrawlMaxPages:  src.getEnvInt("CRAWL_MAX_PAGES", 50),
		CrawlTopic:     src.getEnv("CRAWL_TOPIC", ""),
		CrawlThreshold: src.getEnvFloat64("CRAWL_RELEVANCE_THRESHOLD", 0.35),
		CrawlRenderJS:  src.getEnvBool("CRAWL_RENDER_JS", false),
		CrawlDelay:     src.getEnvDuration("CRAWL_DELAY", time.Second),
		CrawlSchedule:  src.getEnv("CRAWL_SCHEDULE", ""),
	}
	if err := src.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and provider-specific required settings.
func (c *Config) Validate() error {
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}

	switch c.VectorBackend {
	case BackendChroma, BackendMemory:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendChroma, BackendMemory, c.VectorBackend)
	}

	for name, provider := range map[string]string{
		"EMBEDDINGS_PROVIDER": c.EmbeddingProvider,
		"LLM_PROVIDER":        c.LLMProvider,
	} {
		switch provider {
		case ProviderOllama:
		case ProviderGemini:
			if c.GeminiAPIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required when %s is %q", name, ProviderGemini)
			}
		default:
			return fmt.Errorf("%s must be %q or %q, got %q", name, ProviderOllama, ProviderGemini, provider)
		}
	}

	if c.CrawlMaxDepth < 0 {
		return fmt.Errorf("CRAWL_MAX_DEPTH must not be negative, got %d", c.CrawlMaxDepth)
	}
	if c.CrawlMaxPages < 1 {
		return fmt.Errorf("CRAWL_MAX_PAGES must be at least 1, got %d", c.CrawlMaxPages)
	}
	if c.CrawlSchedule != "" && c.CrawlStartURL == "" {
		return errors.New("CRAWL_START_URL is required when CRAWL_SCHEDULE is set")
	}
	if c.HistoryTurns < 0 {
		return fmt.Errorf("HISTORY_TURNS must not be negative, got %d", c.HistoryTurns)
	}
	return nil
}

// Pipeline returns the retrieval pipeline settings.
func (c *Config) Pipeline() rag.Config {
	model := c.EmbeddingModel
	if c.EmbeddingProvider == ProviderGemini {
		model = c.GeminiEmbeddingModel
	}
	return rag.Config{
		ChunkMaxSize:       c.ChunkMaxSize,
		ChunkOverlap:       c.ChunkOverlap,
		TopK:               c.TopK,
		RelevanceThreshold: c.RelevanceThreshold,
		MaxContextLength:   c.MaxContextLength,
		EmbeddingModel:     model,
		CallTimeout:        c.CallTimeout,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
