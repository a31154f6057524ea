package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func withFile(path string) func(o *Options) {
	return func(o *Options) { o.File = path }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderMock, cfg.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "silent", cfg.Verbosity)
	assert.Equal(t, SessionMemory, cfg.Session.Driver)
	assert.Equal(t, "agentlauncher", cfg.NATS.SubjectPrefix)
	assert.True(t, cfg.NATS.Embedded)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
provider: openai
model: gpt-4o
timeout: 30s
session:
  driver: sqlite
  path: /tmp/s.db
nats:
  enabled: true
`)
	t.Setenv("AGENTLAUNCHER_MODEL", "gpt-4.1")
	t.Setenv("AGENTLAUNCHER_LOG_LEVEL", "debug")

	cfg, err := Load(withFile(path))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, SessionSQLite, cfg.Session.Driver)
	assert.Equal(t, "/tmp/s.db", cfg.Session.Path)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Flags(t *testing.T) {
	path := writeFile(t, "provider: anthropic\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("provider", "mock", "")
	flags.Int("max-retries", 5, "")
	flags.String("session", "", "")
	flags.Bool("unrelated", false, "")
	require.NoError(t, flags.Parse([]string{"--max-retries=2", "--session=sqlite"}))

	cfg, err := Load(withFile(path), func(o *Options) {
		o.Flags = flags
		o.FlagKeys = map[string]string{"session": "session.driver"}
	})
	require.NoError(t, err)

	// unchanged flags do not override the file
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, SessionSQLite, cfg.Session.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "provider: nope\nverbosity: loud\nlog:\n  format: xml\n")

	_, err := Load(withFile(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "nope"`)
	assert.Contains(t, err.Error(), `unknown verbosity "loud"`)
	assert.Contains(t, err.Error(), `unknown log format "xml"`)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(withFile(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, WriteDefault(path, false))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, ProviderMock, doc["provider"])
	assert.Contains(t, doc, "nats")

	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))

	cfg, err := Load(withFile(path))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
}
