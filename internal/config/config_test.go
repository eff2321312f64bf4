package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
)

// isolate keeps the user's own config files out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, path, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "duplicates", cfg.DuplicatesDir)
	assert.Empty(t, cfg.Excludes)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, int64(checksum.DefaultPrefixSize), cfg.PrefixSize)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)
	assert.False(t, cfg.FollowSymlinks)
	assert.Equal(t, 10000, cfg.MaxSuffix)
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)

	path := writeConfig(t, "config.toml", `
duplicates_dir = "/var/dupes"
excludes = ["*.tmp", ".git/"]
workers = 2
hash_algorithm = "XXHash"
max_suffix = 50
`)
	t.Setenv("STRICT_DEDUPE_WORKERS", "6")
	t.Setenv("STRICT_DEDUPE_FOLLOW_SYMLINKS", "true")

	cfg, used, err := Load(LoadOptions{
		File:      path,
		Overrides: map[string]interface{}{"max_suffix": 7},
	})
	require.NoError(t, err)

	assert.Equal(t, path, used)
	assert.Equal(t, "/var/dupes", cfg.DuplicatesDir)
	assert.Equal(t, []string{"*.tmp", ".git/"}, cfg.Excludes)
	assert.Equal(t, 6, cfg.Workers, "env beats file")
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, 7, cfg.MaxSuffix, "flags beat everything")
	assert.Equal(t, "xxhash", cfg.HashAlgorithm)

	algo, err := cfg.Algorithm()
	require.NoError(t, err)
	assert.Equal(t, checksum.XXHash, algo)
}

func TestLoadEnvSlice(t *testing.T) {
	isolate(t)
	t.Setenv("STRICT_DEDUPE_EXCLUDES", "*.log,cache/")

	cfg, _, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.log", "cache/"}, cfg.Excludes)
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "config.yaml", "duplicates_dir: yaml-dupes\nprefix_size: 4096\n")

	cfg, _, err := Load(LoadOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, "yaml-dupes", cfg.DuplicatesDir)
	assert.Equal(t, int64(4096), cfg.PrefixSize)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.toml")})
	assert.Error(t, err)
}

func TestLoadXDGFile(t *testing.T) {
	isolate(t)
	dir := os.Getenv("XDG_CONFIG_HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "strict-dedupe"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, UserFile), []byte("concurrency = 3\n"), 0o644))

	cfg, used, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, UserFile), used)
	assert.Equal(t, 3, cfg.Concurrency)
}

func TestEncode(t *testing.T) {
	isolate(t)
	cfg, _, err := Load(LoadOptions{})
	require.NoError(t, err)

	out, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(out), "duplicates_dir = ")
	assert.Contains(t, string(out), "max_suffix = 10000")
}

func validConfig() *Config {
	return &Config{
		DuplicatesDir: "/dupes",
		PrefixSize:    1024,
		HashAlgorithm: "sha256",
		MaxSuffix:     10,
	}
}

func TestValidate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/file", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/existing", 0o755))
	require.NoError(t, fs.MkdirAll("/photos", 0o755))

	tests := []struct {
		name    string
		mutate  func(*Config)
		roots   []string
		wantErr bool
	}{
		{name: "valid", roots: []string{"/photos"}},
		{name: "existing writable destination", roots: []string{"/photos"}, mutate: func(c *Config) { c.DuplicatesDir = "/existing" }},
		{name: "destination inside root", roots: []string{"/photos"}, mutate: func(c *Config) { c.DuplicatesDir = "/photos/dupes" }},
		{name: "no roots", wantErr: true},
		{name: "zero prefix", roots: []string{"/photos"}, mutate: func(c *Config) { c.PrefixSize = 0 }, wantErr: true},
		{name: "zero max suffix", roots: []string{"/photos"}, mutate: func(c *Config) { c.MaxSuffix = 0 }, wantErr: true},
		{name: "negative workers", roots: []string{"/photos"}, mutate: func(c *Config) { c.Workers = -1 }, wantErr: true},
		{name: "unknown algorithm", roots: []string{"/photos"}, mutate: func(c *Config) { c.HashAlgorithm = "md5" }, wantErr: true},
		{name: "bad exclude", roots: []string{"/photos"}, mutate: func(c *Config) { c.Excludes = []string{"[oops"} }, wantErr: true},
		{name: "destination is a root", roots: []string{"/photos/"}, mutate: func(c *Config) { c.DuplicatesDir = "/photos" }, wantErr: true},
		{name: "root inside destination", roots: []string{"/dupes/old"}, wantErr: true},
		{name: "destination is a file", roots: []string{"/photos"}, mutate: func(c *Config) { c.DuplicatesDir = "/file" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(fs, tt.roots, true)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrConfig))
		})
	}
}

func TestValidateReadOnlyDestination(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/dupes", 0o755))
	fs := afero.NewReadOnlyFs(base)

	err := validConfig().Validate(fs, []string{"/photos"}, true)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "not writable")
}

func TestValidateWithoutDestination(t *testing.T) {
	cfg := validConfig()
	cfg.DuplicatesDir = "/photos"
	assert.NoError(t, cfg.Validate(afero.NewMemMapFs(), []string{"/photos"}, false))
}
