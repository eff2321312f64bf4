// Package config loads strict-dedupe settings from defaults, a config file,
// STRICT_DEDUPE_* environment variables and command-line flags, in that order
// of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
)

const (
	EnvPrefix = "STRICT_DEDUPE_"
	// FileName is looked up in the working directory.
	FileName = ".strict-dedupe.toml"
	// UserFile is looked up under the XDG config directories.
	UserFile = "strict-dedupe/config.toml"
)

type Config struct {
	DuplicatesDir  string   `koanf:"duplicates_dir" toml:"duplicates_dir"`
	Excludes       []string `koanf:"excludes" toml:"excludes"`
	Workers        int      `koanf:"workers" toml:"workers"`
	Concurrency    int      `koanf:"concurrency" toml:"concurrency"`
	PrefixSize     int64    `koanf:"prefix_size" toml:"prefix_size"`
	HashAlgorithm  string   `koanf:"hash_algorithm" toml:"hash_algorithm"`
	FollowSymlinks bool     `koanf:"follow_symlinks" toml:"follow_symlinks"`
	MaxSuffix      int      `koanf:"max_suffix" toml:"max_suffix"`
}

// Defaults returns the built-in settings as a flat key map.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"duplicates_dir":  "duplicates",
		"excludes":        []string{},
		"workers":         0,
		"concurrency":     8,
		"prefix_size":     checksum.DefaultPrefixSize,
		"hash_algorithm":  string(checksum.SHA256),
		"follow_symlinks": false,
		"max_suffix":      10000,
	}
}

type LoadOptions struct {
	// File is an explicit config file. When empty, FileName in the working
	// directory and then UserFile under XDG are tried.
	File string
	// Overrides holds flag values the user actually set, keyed like Config.
	Overrides map[string]interface{}
}

// Load builds the effective configuration. It also returns the config file
// that was read, if any.
func Load(opts LoadOptions) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	path, err := findConfigFile(opts.File)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.HashAlgorithm = strings.ToLower(strings.TrimSpace(cfg.HashAlgorithm))
	return &cfg, path, nil
}

func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %w", err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}
	if path, err := xdg.SearchConfigFile(UserFile); err == nil {
		return path, nil
	}
	return "", nil
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	default:
		return toml.Parser()
	}
}

// Algorithm returns the configured digest.
func (c *Config) Algorithm() (checksum.Algorithm, error) {
	return checksum.ParseAlgorithm(c.HashAlgorithm)
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return gotoml.Marshal(c)
}
