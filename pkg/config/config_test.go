package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Twitter.BearerToken = "token"
	cfg.Keywords = KeywordsConfig{
		Accounts: "alice, bob",
		Hashtags: "foo",
		DateFrom: "2021-01-01",
		DateTo:   "2021-02-01T00:00:00Z",
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RateLimit.ResetMargin != 2*time.Second {
		t.Errorf("Expected default reset margin to be 2s, got %s", config.RateLimit.ResetMargin)
	}

	if config.RateLimit.SearchSpacing != time.Second {
		t.Errorf("Expected default search spacing to be 1s, got %s", config.RateLimit.SearchSpacing)
	}

	if config.RateLimit.BatchSize != 10000 {
		t.Errorf("Expected default batch size to be 10000, got %d", config.RateLimit.BatchSize)
	}

	if !config.Steps.Seed || !config.Steps.Timelines || !config.Steps.Edges || !config.Steps.Pruning {
		t.Errorf("Expected all steps enabled by default, got %+v", config.Steps)
	}

	if config.Store.Backend != BackendBadger {
		t.Errorf("Expected default backend to be badger, got %s", config.Store.Backend)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TWEETGRAPH_BEARER_TOKEN", "env-token")
	t.Setenv("TWEETGRAPH_ACCOUNTS", "a,b")
	t.Setenv("TWEETGRAPH_HASHTAGS", "x")
	t.Setenv("TWEETGRAPH_STEP_PRUNING", "false")
	t.Setenv("TWEETGRAPH_STORE_BACKEND", "sqlite")
	t.Setenv("TWEETGRAPH_BATCH_SIZE", "50")
	t.Setenv("TWEETGRAPH_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "env-token", config.Twitter.BearerToken)
	assert.Equal(t, "a,b", config.Keywords.Accounts)
	assert.Equal(t, "x", config.Keywords.Hashtags)
	assert.False(t, config.Steps.Pruning)
	assert.True(t, config.Steps.Edges)
	assert.Equal(t, BackendSQLite, config.Store.Backend)
	assert.Equal(t, 50, config.RateLimit.BatchSize)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("TWEETGRAPH_STEP_SEED", "maybe")
	t.Setenv("TWEETGRAPH_BATCH_SIZE", "lots")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TWEETGRAPH_STEP_SEED")
	assert.Contains(t, err.Error(), "TWEETGRAPH_BATCH_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing bearer token",
			mutate:  func(c *Config) { c.Twitter.BearerToken = "" },
			wantErr: "bearer token is required",
		},
		{
			name:    "no seed accounts",
			mutate:  func(c *Config) { c.Keywords.Accounts = " , ," },
			wantErr: "seed account",
		},
		{
			name: "no seed accounts but seed step disabled",
			mutate: func(c *Config) {
				c.Keywords.Accounts = ""
				c.Steps.Seed = false
			},
		},
		{
			name:    "no hashtags",
			mutate:  func(c *Config) { c.Keywords.Hashtags = "" },
			wantErr: "hashtag",
		},
		{
			name:    "inverted window",
			mutate:  func(c *Config) { c.Keywords.DateFrom, c.Keywords.DateTo = c.Keywords.DateTo, c.Keywords.DateFrom },
			wantErr: "date_from must be before date_to",
		},
		{
			name:    "bad date",
			mutate:  func(c *Config) { c.Keywords.DateTo = "yesterday" },
			wantErr: "date_to",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "arangodb" },
			wantErr: "unknown store backend",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store.Backend = BackendPostgres },
			wantErr: "dsn",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.RateLimit.BatchSize = 0 },
			wantErr: "batch size",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "nope"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "bearer token")
	assert.Contains(t, msg, "seed account")
	assert.Contains(t, msg, "invalid log level")
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tweetgraph.yaml")

	original := validConfig()
	original.TweetFields["lang"] = false
	original.RateLimit.ResetMargin = 5 * time.Second
	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, original.Keywords, loaded.Keywords)
	assert.Equal(t, 5*time.Second, loaded.RateLimit.ResetMargin)
	assert.False(t, loaded.TweetFields["lang"])
	assert.True(t, loaded.UserFields["verified"])
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords: [unterminated"), 0600))

	err := DefaultConfig().LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
twitter:
  bearer_token: file-token
keywords:
  accounts: from-file
  hashtags: filetag
  date_from: "2021-01-01"
  date_to: "2021-03-01"
store:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0600))
	t.Setenv("TWEETGRAPH_HASHTAGS", "envtag")

	cfg, err := Load(path, map[string]interface{}{
		"accounts":     "from-flag",
		"skip-pruning": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Twitter.BearerToken)
	assert.Equal(t, "envtag", cfg.Keywords.Hashtags)
	assert.Equal(t, "from-flag", cfg.Keywords.Accounts)
	assert.False(t, cfg.Steps.Pruning)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoadFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0600))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "configuration validation failed"))
}

func TestLoadWithTokenFallback(t *testing.T) {
	t.Setenv("TWEETGRAPH_BEARER_TOKEN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
keywords:
  accounts: alice
  hashtags: foo
  date_from: "2021-01-01"
  date_to: "2021-03-01"
store:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0600))

	calls := 0
	stored := func() (string, error) {
		calls++
		return "stored-token", nil
	}

	cfg, err := LoadWithToken(path, nil, stored)
	require.NoError(t, err)
	assert.Equal(t, "stored-token", cfg.Twitter.BearerToken)
	assert.Equal(t, 1, calls)

	cfg, err = LoadWithToken(path, map[string]interface{}{"bearer-token": "flag-token"}, stored)
	require.NoError(t, err)
	assert.Equal(t, "flag-token", cfg.Twitter.BearerToken)
	assert.Equal(t, 1, calls)
}

func TestWindow(t *testing.T) {
	k := KeywordsConfig{DateFrom: "2021-01-01", DateTo: "2021-01-31T23:59:59+02:00"}

	from, to, err := k.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2021, 1, 31, 21, 59, 59, 0, time.UTC), to)
}

func TestHashtagListStripsHash(t *testing.T) {
	k := KeywordsConfig{Hashtags: "#foo, bar ,#Baz"}
	assert.Equal(t, []string{"foo", "bar", "Baz"}, k.HashtagList())
}
