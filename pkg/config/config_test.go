package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, []string{"fr", "it", "en"}, cfg.KB.Languages)
	assert.Equal(t, 10, cfg.KB.SearchLimit)
	assert.Equal(t, 30*time.Second, cfg.KB.Timeout)
	assert.Equal(t, 10, cfg.Cooc.MaxDegree)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.InDelta(t, 0.6, cfg.CircuitBreaker.ReadyToTripRatio, 1e-9)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "minerva.yaml")
	content := []byte(`
log:
  level: debug
kb:
  languages: [it, fr]
  timeout: 5s
cooc:
  max_degree: 4
  pos_filter: [NOUN, ADJ]
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("MINERVA_TAGGER_URL", "http://tagger:8000/tag")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"it", "fr"}, cfg.KB.Languages)
	assert.Equal(t, 5*time.Second, cfg.KB.Timeout)
	assert.Equal(t, 4, cfg.Cooc.MaxDegree)
	assert.Equal(t, []string{"NOUN", "ADJ"}, cfg.Cooc.POSFilter)
	assert.Equal(t, "bolt://graph:7687", cfg.Database.URI)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "http://tagger:8000/tag", cfg.NLP.TaggerURL)
	// untouched defaults survive
	assert.Equal(t, 10, cfg.KB.SearchLimit)
}
