package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultTemplatesDir, cfg.TemplatesDir)
	assert.Equal(t, DefaultObjectPrefix, cfg.ObjectPrefix)
	assert.Equal(t, DefaultHashLength, cfg.HashLength)
	assert.Equal(t, DefaultExpirationDays, cfg.ExpirationDays)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.False(t, cfg.Verbose)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
project: my-project
dataset: analytics
bucket: my-extracts
templates_dir: sql
params:
  threshold: "100"
`)
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "my-project", cfg.Project)
	assert.Equal(t, "analytics", cfg.Dataset)
	assert.Equal(t, "my-extracts", cfg.Bucket)
	assert.Equal(t, map[string]string{"threshold": "100"}, cfg.Params)
	// Relative paths resolve against the config file's directory.
	assert.Equal(t, filepath.Join(dir, "sql"), cfg.TemplatesDir)
}

func TestLoadFindsConfigUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "project: upward-project\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "upward-project", cfg.Project)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "dataset: from_file\n")
	t.Chdir(dir)
	t.Setenv("WAREPIPE_DATASET", "from_env")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Dataset)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WAREPIPE_DATASET", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dataset", "", "")
	flags.Int("concurrency", DefaultConcurrency, "")
	require.NoError(t, flags.Parse([]string{"--dataset", "from_flag", "--concurrency", "4"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "from_flag", cfg.Dataset)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoadUnchangedFlagDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "concurrency: 8\n")
	t.Chdir(dir)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("concurrency", DefaultConcurrency, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoadParamFlags(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
params:
  threshold: "100"
  region: us
`)
	t.Chdir(dir)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringArray("param", nil, "")
	require.NoError(t, flags.Parse([]string{"--param", "threshold=200", "--param", "limit=5"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"threshold": "200",
		"region":    "us",
		"limit":     "5",
	}, cfg.Params)
}

func TestLoadParamFlagMalformed(t *testing.T) {
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringArray("param", nil, "")
	require.NoError(t, flags.Parse([]string{"--param", "novalue"}))

	_, err := Load("", flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestValidateWarehouse(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.ValidateWarehouse())

	cfg.Project = "p"
	require.Error(t, cfg.ValidateWarehouse())

	cfg.Dataset = "d"
	require.NoError(t, cfg.ValidateWarehouse())
}

func TestExpiration(t *testing.T) {
	cfg := &Config{ExpirationDays: 14}
	assert.Equal(t, 14*24*60*60, int(cfg.Expiration().Seconds()))
}
