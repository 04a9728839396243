package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetgraph/pkg/config"
	"tweetgraph/pkg/ui"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	prev := ui.Output
	ui.Output = &out
	t.Cleanup(func() { ui.Output = prev })

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitShowValidate(t *testing.T) {
	t.Setenv("TWEETGRAPH_BEARER_TOKEN", "AAAAsecret-tokenZZZZ")
	path := filepath.Join(t.TempDir(), "tweetgraph.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "nasa,esa", cfg.Keywords.Accounts)
	assert.Empty(t, cfg.Twitter.BearerToken)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "AAAA...ZZZZ")
	assert.NotContains(t, out, "secret-token")

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigValidateReportsProblems(t *testing.T) {
	t.Setenv("TWEETGRAPH_BEARER_TOKEN", "token")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: cassandra\nkeywords:\n  accounts: a\n  hashtags: b\n  date_from: \"2021-01-01\"\n  date_to: \"2021-02-01\"\n"), 0600))

	_, err := execute(t, "config", "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store backend "cassandra"`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tweetgraph "+version)
}

func TestDescribeStore(t *testing.T) {
	assert.Equal(t, "badger at ./data/graph", describeStore(config.DefaultConfig().Store))
	assert.Equal(t, "postgres", describeStore(config.StoreConfig{Backend: config.BackendPostgres, DSN: "postgres://x"}))
}
