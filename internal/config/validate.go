package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/yuya-takeyama/strict-dedupe/internal/walker"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
)

// Validate checks the configuration against the roots of a run. Every
// problem found here is a CONFIG error and must stop the run before
// scanning. checkDest is false for runs that never move anything.
func (c *Config) Validate(fs afero.Fs, roots []string, checkDest bool) error {
	if len(roots) == 0 {
		return errors.ConfigurationError("at least one root directory is required")
	}
	if c.PrefixSize <= 0 {
		return errors.ConfigurationError("prefix_size must be positive, got %d", c.PrefixSize)
	}
	if c.MaxSuffix <= 0 {
		return errors.ConfigurationError("max_suffix must be positive, got %d", c.MaxSuffix)
	}
	if c.Workers < 0 {
		return errors.ConfigurationError("workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.Algorithm(); err != nil {
		return errors.Wrap(err, errors.ErrConfig, "invalid hash_algorithm")
	}
	if err := walker.ValidatePatterns(c.Excludes); err != nil {
		return errors.Wrap(err, errors.ErrConfig, "invalid excludes")
	}

	if !checkDest {
		return nil
	}
	if c.DuplicatesDir == "" {
		return errors.ConfigurationError("duplicates_dir must not be empty")
	}

	dest := filepath.Clean(c.DuplicatesDir)
	for _, root := range roots {
		root = filepath.Clean(root)
		if dest == root {
			return errors.ConfigurationError("duplicates directory is one of the roots").WithPath(dest)
		}
		if isWithin(root, dest) {
			return errors.ConfigurationError("root lies inside the duplicates directory").WithPath(root)
		}
	}

	info, err := fs.Stat(dest)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return errors.Wrap(err, errors.ErrConfig, "cannot access duplicates directory").WithPath(dest)
	case !info.IsDir():
		return errors.ConfigurationError("duplicates directory is not a directory").WithPath(dest)
	}

	probe, err := afero.TempFile(fs, dest, ".strict-dedupe-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrConfig, "duplicates directory is not writable").WithPath(dest)
	}
	name := probe.Name()
	probe.Close()
	_ = fs.Remove(name)
	return nil
}

// isWithin reports whether path lies strictly below dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
