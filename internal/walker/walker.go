package walker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
)

// FileRef represents a regular file found during traversal
type FileRef struct {
	Index   int    // Traversal index, dense from 0
	Path    string // Root joined with the relative path
	Root    string
	RelPath string // Slash-separated path relative to Root
	Size    int64
}

// Options controls what the walker yields
type Options struct {
	Excludes       []string // doublestar patterns matched against RelPath
	SkipDirs       []string // directories never descended
	FollowSymlinks bool
	Logger         logger.Logger
}

// Walker enumerates regular files under a list of roots in a stable order:
// roots in the order given, entries within a directory in lexicographic
// order, subdirectories descended where they sort.
type Walker struct {
	fs    afero.Fs
	roots []string
	opts  Options
	log   logger.Logger
	skip  map[string]struct{}
}

// NewWalker creates a new file walker
func NewWalker(fs afero.Fs, roots []string, opts Options) *Walker {
	skip := make(map[string]struct{}, len(opts.SkipDirs))
	for _, dir := range opts.SkipDirs {
		skip[filepath.Clean(dir)] = struct{}{}
	}
	return &Walker{
		fs:    fs,
		roots: roots,
		opts:  opts,
		log:   logger.OrNull(opts.Logger),
		skip:  skip,
	}
}

// walk holds the state of a single traversal so Walk can be called again.
type walk struct {
	*Walker
	visit    func(FileRef) error
	seen     map[string]struct{}
	resolved []string // roots with symlinks evaluated
	warnings []errors.Warning
	next     int
}

// Walk calls visit for every file, in traversal order. Paths that cannot be
// read are collected as SCAN warnings instead of stopping the walk. The
// returned error is either ctx.Err() or an error returned by visit.
func (w *Walker) Walk(ctx context.Context, visit func(FileRef) error) ([]errors.Warning, error) {
	st := &walk{
		Walker: w,
		visit:  visit,
		seen:   make(map[string]struct{}),
	}

	w.log.PhaseStart(logger.PhaseScan, 0)

	if w.opts.FollowSymlinks {
		for _, root := range w.roots {
			if r, err := filepath.EvalSymlinks(root); err == nil {
				st.resolved = append(st.resolved, r)
			}
		}
	}

	for _, root := range w.roots {
		root = filepath.Clean(root)

		info, err := w.fs.Stat(root)
		if err != nil {
			st.warn(errors.ScanError(root, err))
			continue
		}
		if !info.IsDir() {
			st.warn(errors.ScanError(root, fmt.Errorf("root is not a directory")))
			continue
		}
		if w.skipped(root) {
			continue
		}

		if err := st.walkDir(ctx, root, root); err != nil {
			return st.warnings, err
		}
	}

	w.log.PhaseComplete(logger.PhaseScan, st.next)
	return st.warnings, nil
}

// Collect walks every root and returns the files found.
func (w *Walker) Collect(ctx context.Context) ([]FileRef, []errors.Warning, error) {
	var files []FileRef
	warnings, err := w.Walk(ctx, func(f FileRef) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, warnings, err
	}
	return files, warnings, nil
}

func (st *walk) walkDir(ctx context.Context, root, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := afero.ReadDir(st.fs, dir)
	if err != nil {
		st.warn(errors.ScanError(dir, err))
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			st.warn(errors.ScanError(path, err))
			continue
		}
		relPath = filepath.ToSlash(relPath)

		size := entry.Size()
		mode := entry.Mode()

		switch {
		case mode.IsDir():
			if st.skipped(path) || st.isExcluded(relPath) {
				continue
			}
			if err := st.walkDir(ctx, root, path); err != nil {
				return err
			}
			continue

		case mode&os.ModeSymlink != 0:
			target, err := st.fs.Stat(path)
			if err != nil {
				st.warn(errors.ScanError(path, fmt.Errorf("broken symlink: %w", err)))
				continue
			}
			if !st.opts.FollowSymlinks || !target.Mode().IsRegular() {
				st.log.ItemProcessed(logger.PhaseScan, path, "skip")
				continue
			}
			targetPath, err := filepath.EvalSymlinks(path)
			if err != nil {
				st.warn(errors.ScanError(path, err))
				continue
			}
			// A link is only an alias when its target is scanned anyway, and
			// must never stand in for that target.
			if _, dup := st.seen[targetPath]; dup || st.underRoot(targetPath) {
				st.log.ItemProcessed(logger.PhaseScan, path, "skip")
				continue
			}
			st.seen[targetPath] = struct{}{}
			size = target.Size()

		case !mode.IsRegular():
			continue
		}

		if st.isExcluded(relPath) {
			continue
		}
		if _, dup := st.seen[path]; dup {
			continue
		}
		st.seen[path] = struct{}{}

		ref := FileRef{
			Index:   st.next,
			Path:    path,
			Root:    root,
			RelPath: relPath,
			Size:    size,
		}
		st.next++
		st.log.ItemProcessed(logger.PhaseScan, path, "found")

		if err := st.visit(ref); err != nil {
			return err
		}
	}

	return nil
}

func (st *walk) warn(err *errors.DedupeError) {
	w := errors.AsWarning(err)
	st.warnings = append(st.warnings, w)
	st.log.Warn(w)
}

// underRoot reports whether a resolved path lies inside one of the roots.
func (st *walk) underRoot(path string) bool {
	for _, root := range st.resolved {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Walker) skipped(dir string) bool {
	_, ok := w.skip[filepath.Clean(dir)]
	return ok
}

// isExcluded checks if a path matches any exclude pattern
func (w *Walker) isExcluded(path string) bool {
	for _, pattern := range w.opts.Excludes {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(path, "/")
			for i := 1; i <= len(parts); i++ {
				if matched, _ := doublestar.Match(dirPattern, strings.Join(parts[:i], "/")); matched {
					return true
				}
			}
			continue
		}
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

// ValidatePatterns reports the first malformed exclude pattern.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}
	return nil
}
