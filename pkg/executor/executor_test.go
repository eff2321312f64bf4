package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/planner"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

func statuses(results []Result) []Status {
	out := []Status{}
	for _, r := range results {
		out = append(out, r.Status)
	}
	return out
}

func TestExecuteMovesAndRenames(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/A/x.jpg":     "one",
		"/A/sub/y.jpg": "one",
		"/B/x.jpg":     "two",
	})

	plan := &planner.Plan{Actions: []planner.Action{
		{Kind: planner.ActionMove, Source: "/A/sub/y.jpg", Destination: "/dupes/A/sub/y.jpg", Size: 3},
		{Kind: planner.ActionRename, Source: "/B/x.jpg", Destination: "/B/x-1.jpg", Size: 3},
	}}

	results := NewExecutor(fs, nil, 2).Execute(context.Background(), plan)
	assert.Equal(t, []Status{StatusApplied, StatusApplied}, statuses(results))
	for _, r := range results {
		assert.NoError(t, r.Error)
	}

	assert.Equal(t, "one", readFile(t, fs, "/dupes/A/sub/y.jpg"))
	assert.Equal(t, "two", readFile(t, fs, "/B/x-1.jpg"))
	_, err := fs.Stat("/A/sub/y.jpg")
	assert.True(t, os.IsNotExist(err))

	// a second run finds everything done
	again := NewExecutor(fs, nil, 2).Execute(context.Background(), plan)
	assert.Equal(t, []Status{StatusSkipped, StatusSkipped}, statuses(again))
	assert.Equal(t, Summary{Skipped: 2}, Summarize(again))
}

func TestExecuteNeverOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/r/a.txt":   "source",
		"/r/a-1.txt": "someone else",
	})

	plan := &planner.Plan{Actions: []planner.Action{
		{Kind: planner.ActionRename, Source: "/r/a.txt", Destination: "/r/a-1.txt"},
		{Kind: planner.ActionRename, Source: "/r/gone.txt", Destination: "/r/gone-1.txt"},
	}}

	results := NewExecutor(fs, nil, 1).Execute(context.Background(), plan)
	assert.Equal(t, []Status{StatusFailed, StatusFailed}, statuses(results))
	assert.True(t, errors.IsErrorCode(results[0].Error, errors.ErrApplyConflict))
	assert.True(t, errors.IsErrorCode(results[1].Error, errors.ErrSourceMissing))

	assert.Equal(t, "source", readFile(t, fs, "/r/a.txt"))
	assert.Equal(t, "someone else", readFile(t, fs, "/r/a-1.txt"))
	assert.Equal(t, Summary{Failed: 2}, Summarize(results))
}

func TestExecuteCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/r/a": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &planner.Plan{Actions: []planner.Action{
		{Kind: planner.ActionRename, Source: "/r/a", Destination: "/r/a-1"},
	}}
	results := NewExecutor(fs, nil, 1).Execute(ctx, plan)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
	assert.Equal(t, "x", readFile(t, fs, "/r/a"))
}

func TestCopyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/src/file": "payload",
		"/dst/busy": "keep me",
	})

	require.NoError(t, copyFile(fs, "/src/file", "/dst/file"))
	assert.Equal(t, "payload", readFile(t, fs, "/dst/file"))

	assert.Error(t, copyFile(fs, "/src/file", "/dst/busy"))
	assert.Equal(t, "keep me", readFile(t, fs, "/dst/busy"))
}

func TestApplyThenReplanIsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/A/x.jpg":      strings.Repeat("1", 100),
		"/A/y.jpg":      strings.Repeat("1", 100),
		"/A/sub/x.jpg":  strings.Repeat("1", 100),
		"/B/x.jpg":      strings.Repeat("2", 50),
		"/B/z.txt":      "zz",
		"/B/deep/z.txt": "z2",
	})

	p := planner.New(fs, planner.Options{Roots: []string{"/A", "/B"}, DuplicatesDir: "/dupes"})

	report, err := p.PlanAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.Plan.Actions)

	results := NewExecutor(fs, nil, 4).Execute(context.Background(), report.Plan)
	assert.Equal(t, Summary{Applied: len(report.Plan.Actions)}, Summarize(results))

	again, err := p.PlanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Plan.Actions)
	assert.Empty(t, again.Plan.Groups)
	assert.Empty(t, again.Plan.Renames)
}

func TestApplyThenReplanOnDisk(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	rootA := filepath.Join(dir, "A")
	rootB := filepath.Join(dir, "B")
	writeFiles(t, fs, map[string]string{
		filepath.Join(rootA, "x.jpg"):      strings.Repeat("1", 100),
		filepath.Join(rootA, "y.jpg"):      strings.Repeat("1", 100),
		filepath.Join(rootB, "x.jpg"):      strings.Repeat("2", 50),
		filepath.Join(rootB, "x-1.jpg"):    "taken",
		filepath.Join(rootB, "n", "x.jpg"): "three",
	})

	p := planner.New(fs, planner.Options{
		Roots:         []string{rootA, rootB},
		DuplicatesDir: filepath.Join(dir, "duplicates"),
	})

	report, err := p.PlanAll(context.Background())
	require.NoError(t, err)

	results := NewExecutor(fs, nil, 0).Execute(context.Background(), report.Plan)
	for _, r := range results {
		require.NoError(t, r.Error)
	}
	assert.Equal(t, strings.Repeat("1", 100), readFile(t, fs, filepath.Join(dir, "duplicates", "A", "y.jpg")))

	again, err := p.PlanAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Plan.Actions)
}
