package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 800, cfg.ChunkMaxSize)
	assert.Equal(t, 80, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, BackendChroma, cfg.VectorBackend)
	assert.Equal(t, filepath.Join("data", "raw"), filepath.Clean(cfg.UploadDir))
	assert.Equal(t, cfg.UploadDir, cfg.WatchDir)

	pc := cfg.Pipeline()
	assert.Equal(t, cfg.EmbeddingModel, pc.EmbeddingModel)
	assert.Equal(t, 4000, pc.MaxContextLength)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "admissions.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunk_max_size = 300
chunk_overlap = 50
relevance_threshold = 0.7
call_timeout = "5s"
crawl_render_js = true
top_k = 3
`), 0o600))

	t.Setenv("TOP_K", "9")

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.ChunkMaxSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.InDelta(t, 0.7, cfg.RelevanceThreshold, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.True(t, cfg.CrawlRenderJS)
	assert.Equal(t, 9, cfg.TopK)
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CHROMA_COLLECTION=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHROMA_COLLECTION") })

	cfg, err := Load(envPath, "")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.CollectionName)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"overlap too large":    {"CHUNK_MAX_SIZE": "100", "CHUNK_OVERLAP": "100"},
		"top k zero":           {"TOP_K": "0"},
		"unknown backend":      {"VECTOR_BACKEND": "pinecone"},
		"gemini without key":   {"LLM_PROVIDER": "gemini", "GEMINI_API_KEY": ""},
		"unknown provider":     {"EMBEDDINGS_PROVIDER": "openai"},
		"schedule without url": {"CRAWL_SCHEDULE": "0 3 * * *"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("", "")
			assert.Error(t, err)
		})
	}
}

func TestMalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_max_size = [unterminated"), 0o600))

	_, err := Load("", path)
	assert.Error(t, err)
}

func TestUnparsableValuesAreReported(t *testing.T) {
	t.Setenv("CHUNK_OVERLAP", "eighty")
	t.Setenv("CALL_TIMEOUT", "soon")

	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid CHUNK_OVERLAP "eighty"`)
	assert.Contains(t, err.Error(), `invalid CALL_TIMEOUT "soon"`)
}
