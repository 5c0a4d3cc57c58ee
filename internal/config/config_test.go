package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/pkg/store"
)

func envMap(m map[string]string) *EnvProvider {
	return &EnvProvider{Lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolve_FirstCompleteProviderWins(t *testing.T) {
	chain := Chain{
		&Static{Settings: Settings{URL: "libsql://flag-only-url.turso.io"}},
		envMap(map[string]string{EnvURL: "libsql://env.turso.io", EnvToken: "env-token"}),
		&Static{Label: "late", Settings: Settings{URL: "libsql://late.turso.io", Token: "late-token"}},
	}

	s, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "libsql://env.turso.io", s.URL)
	assert.Equal(t, "env-token", s.Token)
	assert.Equal(t, "env", s.Source)
	assert.NoError(t, s.RequireConnection())
}

func TestResolve_NeverMixesProviders(t *testing.T) {
	chain := Chain{
		&Static{Settings: Settings{URL: "libsql://a.turso.io"}},
		envMap(map[string]string{EnvToken: "only-token"}),
	}

	s, err := chain.Resolve()
	require.NoError(t, err)
	assert.False(t, s.HasConnection())

	err = s.RequireConnection()
	var cfgErr *store.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"auth token"}, cfgErr.Missing)
}

func TestResolve_MissingEverything(t *testing.T) {
	s, err := Chain{envMap(nil)}.Resolve()
	require.NoError(t, err)

	var cfgErr *store.ConfigurationError
	require.ErrorAs(t, s.RequireConnection(), &cfgErr)
	assert.Equal(t, []string{"database url", "auth token"}, cfgErr.Missing)
}

func TestResolve_UndefinedTokenIsMissing(t *testing.T) {
	chain := Chain{
		envMap(map[string]string{EnvURL: "libsql://a.turso.io", EnvToken: "undefined"}),
		&Static{Label: "fallback", Settings: Settings{URL: "http://localhost:8081", Token: "dev"}},
	}
	s, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "fallback", s.Source)
	assert.Equal(t, "dev", s.Token)
}

func TestResolve_TuningMergesThenDefaults(t *testing.T) {
	chain := Chain{
		&Static{Settings: Settings{Ingest: IngestSettings{BatchSize: 500}}},
		envMap(map[string]string{
			EnvBatchSize:     "10",
			EnvConcurrency:   "4",
			EnvBackoff:       "250ms",
			EnvCaseSensitive: "true",
			EnvLogFormat:     "json",
		}),
	}
	s, err := chain.Resolve()
	require.NoError(t, err)

	assert.Equal(t, 500, s.Ingest.BatchSize)
	assert.Equal(t, 4, s.Ingest.Concurrency)
	assert.Equal(t, DefaultRetries, s.Ingest.Retries)
	assert.Equal(t, 250*time.Millisecond, s.Ingest.Backoff)
	assert.True(t, s.Server.CaseSensitive)
	assert.Equal(t, DefaultAddr, s.Server.Addr)
	assert.Equal(t, DefaultTimeout, s.Server.Timeout)
	assert.Equal(t, "json", s.Log.Format)
	assert.Equal(t, DefaultLogLevel, s.Log.Level)
}

func TestEnvProvider_InvalidValues(t *testing.T) {
	_, err := envMap(map[string]string{
		EnvBatchSize: "lots",
		EnvBackoff:   "soon",
	}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvBatchSize)
	assert.Contains(t, err.Error(), EnvBackoff)

	_, err = Chain{envMap(map[string]string{EnvRetries: "x"})}.Resolve()
	assert.ErrorContains(t, err, "load env config")
}

func TestResolve_BrokenLowerProviderAfterConnection(t *testing.T) {
	dotenv := writeFile(t, ".env", "MEGATABLE_BATCH_SIZE=abc\n")
	chain := Chain{
		&Static{Settings: Settings{URL: "libsql://flags.turso.io", Token: "flag-token"}},
		envMap(map[string]string{EnvRetries: "x"}),
		&DotenvProvider{Path: dotenv},
	}

	s, err := chain.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "flags", s.Source)
	assert.Equal(t, "libsql://flags.turso.io", s.URL)
	assert.Equal(t, DefaultRetries, s.Ingest.Retries)
	assert.Equal(t, DefaultBatchSize, s.Ingest.BatchSize)
	require.Len(t, s.Warnings, 2)
	assert.Contains(t, s.Warnings[0], "load env config")
	assert.Contains(t, s.Warnings[1], "load dotenv config")
}

func TestResolve_BrokenProviderBeforeConnection(t *testing.T) {
	chain := Chain{
		&Static{Settings: Settings{URL: "libsql://flags.turso.io"}},
		envMap(map[string]string{EnvToken: "t", EnvBatchSize: "abc"}),
		&Static{Label: "late", Settings: Settings{URL: "libsql://late.turso.io", Token: "late-token"}},
	}

	_, err := chain.Resolve()
	assert.ErrorContains(t, err, "load env config")
}

func TestFileProvider(t *testing.T) {
	path := writeFile(t, "megatable.hcl", `
database {
  url   = "libsql://file.turso.io"
  token = env("MY_TOKEN")
}

ingest {
  batch_size  = 200
  concurrency = 8
  retries     = 5
  backoff     = "2s"
  rate_limit  = 50
}

server {
  addr           = ":9000"
  timeout        = "5s"
  case_sensitive = true
  max_limit      = 200
  detail_cache   = 1024
}

log {
  format = "json"
  level  = "debug"
}
`)

	p := &FileProvider{Path: path, Getenv: func(k string) string {
		if k == "MY_TOKEN" {
			return "file-token"
		}
		return ""
	}}
	s, err := p.Load()
	require.NoError(t, err)

	assert.Equal(t, "libsql://file.turso.io", s.URL)
	assert.Equal(t, "file-token", s.Token)
	assert.Equal(t, IngestSettings{BatchSize: 200, Concurrency: 8, Retries: 5, Backoff: 2 * time.Second, RateLimit: 50}, s.Ingest)
	assert.Equal(t, ServerSettings{Addr: ":9000", Timeout: 5 * time.Second, CaseSensitive: true, MaxLimit: 200, DetailCache: 1024}, s.Server)
	assert.Equal(t, LogSettings{Format: "json", Level: "debug"}, s.Log)
}

func TestFileProvider_PartialAndErrors(t *testing.T) {
	s, err := (&FileProvider{}).Load()
	require.NoError(t, err)
	assert.Equal(t, &Settings{}, s)

	path := writeFile(t, "partial.hcl", "log {\n  level = \"warn\"\n}\n")
	s, err = (&FileProvider{Path: path}).Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", s.Log.Level)
	assert.Empty(t, s.URL)

	_, err = (&FileProvider{Path: filepath.Join(t.TempDir(), "nope.hcl")}).Load()
	assert.ErrorContains(t, err, "does not exist")

	bad := writeFile(t, "bad.hcl", "ingest {\n  backoff = \"soon\"\n}\n")
	_, err = (&FileProvider{Path: bad}).Load()
	assert.ErrorContains(t, err, "ingest.backoff")

	unknown := writeFile(t, "unknown.hcl", "nonsense = 1\n")
	_, err = (&FileProvider{Path: unknown}).Load()
	assert.Error(t, err)
}

func TestDotenvProvider(t *testing.T) {
	path := writeFile(t, ".env", "# local\nTURSO_DATABASE_URL=libsql://dotenv.turso.io\nTURSO_AUTH_TOKEN=\"dotenv-token\"\nMEGATABLE_RETRIES=7\n")

	s, err := (&DotenvProvider{Path: path}).Load()
	require.NoError(t, err)
	assert.Equal(t, "libsql://dotenv.turso.io", s.URL)
	assert.Equal(t, "dotenv-token", s.Token)
	assert.Equal(t, 7, s.Ingest.Retries)

	s, err = (&DotenvProvider{Path: filepath.Join(t.TempDir(), ".env")}).Load()
	require.NoError(t, err)
	assert.False(t, s.HasConnection())
}

func TestDefaultChainOrder(t *testing.T) {
	chain := Default(Settings{}, "")
	var names []string
	for _, p := range chain {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"flags", "file", "env", "dotenv"}, names)
}
