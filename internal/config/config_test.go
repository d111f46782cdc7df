package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets CLARITY_* and provider keys for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func TestLoadDefaultsWithHashEmbedder(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLARITY_EMBEDDING_PROVIDER", "hash")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "hash", cfg.EmbeddingProvider)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.SignalProvider)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "clarity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedding_provider: openai
openai_api_key: sk-file
top_n: 7
log_format: json
`), 0o600))
	t.Setenv("CLARITY_TOP_N", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "sk-file", cfg.EmbeddingAPIKey())
	assert.Equal(t, 4, cfg.TopN)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadJSONFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "clarity.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"embedding_provider":"hash","max_retries":9}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxRetries)
}

func TestLoadFallbackKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("CLARITY_SIGNAL_PROVIDER", "gemini")
	t.Setenv("CLARITY_SIGNAL_MODEL", "gemini-2.5-flash")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "genai", cfg.EmbeddingProvider)
	assert.Equal(t, "g-key", cfg.EmbeddingAPIKey())
	assert.Equal(t, "g-key", cfg.SignalAPIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLARITY_EMBEDDING_PROVIDER", "word2vec")
	t.Setenv("CLARITY_TOP_N", "0")

	_, err := Load("")
	require.Error(t, err)
	var details ValidationErrors
	require.True(t, errors.As(err, &details))
	fields := map[string]bool{}
	for _, d := range details {
		fields[d.Field] = true
	}
	assert.True(t, fields["Config.EmbeddingProvider"])
	assert.True(t, fields["Config.TopN"])
}

func TestLoadRequiresProviderKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLARITY_SIGNAL_PROVIDER", "grok")
	t.Setenv("CLARITY_SIGNAL_MODEL", "grok-4-fast")

	_, err := Load("")
	var details ValidationErrors
	require.True(t, errors.As(err, &details))
	fields := map[string]bool{}
	for _, d := range details {
		fields[d.Field] = true
	}
	assert.True(t, fields["Config.EmbeddingAPIKey"])
	assert.True(t, fields["Config.SignalAPIKey"])
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "config.toml"))
	require.Error(t, err)
}

func TestChatModelFallsBackToSignalModel(t *testing.T) {
	cfg := &Config{SignalModel: "gpt-4o-mini"}
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel())

	cfg.CompanionModel = "gpt-4o"
	assert.Equal(t, "gpt-4o", cfg.ChatModel())
}
