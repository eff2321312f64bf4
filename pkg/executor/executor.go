package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/yuya-takeyama/strict-dedupe/internal/worker"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
	"github.com/yuya-takeyama/strict-dedupe/pkg/planner"
)

const DefaultConcurrency = 8

type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

type Executor struct {
	fs          afero.Fs
	logger      logger.Logger
	concurrency int
}

func NewExecutor(fs afero.Fs, log logger.Logger, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Executor{
		fs:          fs,
		logger:      logger.OrNull(log),
		concurrency: concurrency,
	}
}

type Result struct {
	Action planner.Action
	Status Status
	Error  error
}

type task struct {
	idx    int
	action planner.Action
}

type outcome struct {
	idx    int
	status Status
	err    error
}

// Execute applies every action of plan and returns one Result per action,
// in plan order. Actions whose source is gone and whose destination exists
// are reported as skipped, so executing the same plan twice is safe. An
// existing destination is never overwritten.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) []Result {
	results := make([]Result, len(plan.Actions))
	seed := make([]task, len(plan.Actions))
	for i, a := range plan.Actions {
		seed[i] = task{idx: i, action: a}
		results[i] = Result{Action: a, Status: StatusFailed}
	}

	e.logger.PhaseStart(logger.PhaseApply, len(seed))

	processed := 0
	pool := worker.NewPool(e.concurrency, func(ctx context.Context, t task) outcome {
		status, err := e.executeAction(ctx, t.action)
		return outcome{idx: t.idx, status: status, err: err}
	})

	// Results are recorded from a single goroutine, so logging needs no lock.
	err := pool.Run(ctx, seed, func(o outcome) []task {
		processed++
		r := &results[o.idx]
		r.Status = o.status
		r.Error = o.err

		switch o.status {
		case StatusApplied:
			e.logger.ItemProcessed(logger.PhaseApply, r.Action.Source, string(r.Action.Kind))
		case StatusSkipped:
			e.logger.ItemProcessed(logger.PhaseApply, r.Action.Source, "skip")
		default:
			e.logger.Warn(errors.AsWarning(o.err))
		}
		return nil
	})

	if err != nil {
		for i := range results {
			if results[i].Error == nil && results[i].Status == StatusFailed {
				results[i].Error = err
			}
		}
	}

	e.logger.PhaseComplete(logger.PhaseApply, processed)
	return results
}

func (e *Executor) executeAction(ctx context.Context, action planner.Action) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusFailed, err
	}

	srcExists := exists(e.fs, action.Source)
	dstExists := exists(e.fs, action.Destination)

	switch {
	case !srcExists && dstExists:
		return StatusSkipped, nil
	case srcExists && dstExists:
		return StatusFailed, errors.New(errors.ErrApplyConflict, "destination already exists").
			WithPath(action.Destination).
			WithDetail("source", action.Source)
	case !srcExists:
		return StatusFailed, errors.New(errors.ErrSourceMissing, "source no longer exists").
			WithPath(action.Source)
	}

	switch action.Kind {
	case planner.ActionMove:
		if err := e.fs.MkdirAll(filepath.Dir(action.Destination), 0o755); err != nil {
			return StatusFailed, errors.Wrap(err, errors.ErrInternal, "failed to create directory").
				WithPath(filepath.Dir(action.Destination))
		}
	case planner.ActionRename:
	default:
		return StatusFailed, errors.Newf(errors.ErrInternal, "unknown action %q", action.Kind).
			WithPath(action.Source)
	}

	if err := e.move(action.Source, action.Destination); err != nil {
		return StatusFailed, errors.Wrapf(err, errors.ErrInternal, "failed to %s", action.Kind).
			WithPath(action.Source)
	}
	return StatusApplied, nil
}

// move renames src to dst, copying across filesystems when a plain rename
// is not possible.
func (e *Executor) move(src, dst string) error {
	err := e.fs.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}

	if err := copyFile(e.fs, src, dst); err != nil {
		return fmt.Errorf("failed to copy across devices: %w", err)
	}
	return e.fs.Remove(src)
}

func copyFile(fs afero.Fs, src, dst string) (err error) {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = fs.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return fs.Chtimes(dst, info.ModTime(), info.ModTime())
}

// exists reports whether something occupies path. A dangling symlink counts.
func exists(fs afero.Fs, path string) bool {
	var err error
	if l, ok := fs.(afero.Lstater); ok {
		_, _, err = l.LstatIfPossible(path)
	} else {
		_, err = fs.Stat(path)
	}
	return !os.IsNotExist(err)
}

// Summary counts results by status.
type Summary struct {
	Applied int
	Skipped int
	Failed  int
}

func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusApplied:
			s.Applied++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
