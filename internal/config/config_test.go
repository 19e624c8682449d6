package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigJSONDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{"urls": ["https://example.com"]}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com"}, cfg.URLs)
	assert.Equal(t, "output.owl", cfg.OutputPath)
	assert.Equal(t, DefaultFallbackVocab, cfg.FallbackVocab)
	assert.Equal(t, 10000, cfg.RequestTimeoutMs)
	assert.Equal(t, 1, cfg.FetchConcurrency)
	assert.Equal(t, "ldweaver.db", cfg.DBPath)
	assert.Equal(t, 0, cfg.MaxBodyBytes)
	assert.True(t, cfg.JournalEnabled())
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
url_source: https://urls.example.com/api/urls
output_path: graph.owl
fetch_concurrency: 4
db_path: "-"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://urls.example.com/api/urls", cfg.URLSource)
	assert.Equal(t, "graph.owl", cfg.OutputPath)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.False(t, cfg.JournalEnabled())
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad json", content: `{"urls": [`},
		{name: "timeout too small", content: `{"request_timeout_ms": 5}`},
		{name: "negative concurrency", content: `{"fetch_concurrency": -2}`},
		{name: "negative rate", content: `{"requests_per_second": -1}`},
		{name: "negative body limit", content: `{"max_body_bytes": -1}`},
		{name: "two url sources", content: `{"url_source": "https://a", "urls_file": "urls.txt"}`},
		{name: "relative vocab", content: `{"fallback_vocab": "ftf#"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.json", test.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
