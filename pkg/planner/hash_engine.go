package planner

import (
	"context"
	"sort"

	"github.com/spf13/afero"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
	"github.com/yuya-takeyama/strict-dedupe/internal/worker"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
)

type hashTask struct {
	rec   *FileRecord
	group int
	full  bool
}

type hashResult struct {
	task     hashTask
	sum      checksum.Sum
	complete bool
	err      error
}

type indexedWarning struct {
	index   int
	warning errors.Warning
}

// hashEngine fills in the digests of every record in a set of size groups.
//
// Phase 1 digests a bounded prefix of each record. As soon as the last
// prefix of a size group is known, that group is split by prefix digest and
// phase 2 is queued for buckets with two or more members, while other groups
// may still be in phase 1. Workers only read files; all record updates happen
// in handle, which the pool calls from a single goroutine.
type hashEngine struct {
	fs         afero.Fs
	algorithm  checksum.Algorithm
	prefixSize int64
	log        logger.Logger
	progress   *Progress

	groups   []SizeGroup
	pending  []int
	warnings []indexedWarning

	partialDone int
	fullDone    int
}

func newHashEngine(fs afero.Fs, algorithm checksum.Algorithm, prefixSize int64, log logger.Logger, progress *Progress) *hashEngine {
	return &hashEngine{
		fs:         fs,
		algorithm:  algorithm,
		prefixSize: prefixSize,
		log:        log,
		progress:   progress,
	}
}

func (e *hashEngine) run(ctx context.Context, groups []SizeGroup, workers int) error {
	e.groups = groups
	e.pending = make([]int, len(groups))

	var seed []hashTask
	for gi, g := range groups {
		for _, rec := range g.Records {
			seed = append(seed, hashTask{rec: rec, group: gi})
		}
		e.pending[gi] = len(g.Records)
	}

	e.log.PhaseStart(logger.PhasePartialHash, len(seed))
	e.log.PhaseStart(logger.PhaseFullHash, 0)

	pool := worker.NewPool(workers, e.hash)
	if err := pool.Run(ctx, seed, e.handle); err != nil {
		return err
	}

	e.log.PhaseComplete(logger.PhasePartialHash, e.partialDone)
	e.log.PhaseComplete(logger.PhaseFullHash, e.fullDone)
	return nil
}

// hash runs on a worker goroutine and must not touch the record.
func (e *hashEngine) hash(ctx context.Context, task hashTask) hashResult {
	res := hashResult{task: task}
	rec := task.rec

	if task.full {
		res.sum, res.err = e.algorithm.File(ctx, e.fs, rec.Path, rec.Size)
		if res.err == nil {
			e.progress.BytesRead.Add(rec.Size)
		}
		return res
	}

	res.sum, res.complete, res.err = e.algorithm.Prefix(ctx, e.fs, rec.Path, rec.Size, e.prefixSize)
	if res.err == nil {
		e.progress.BytesRead.Add(min(rec.Size, e.prefixSize))
	}
	return res
}

func (e *hashEngine) handle(res hashResult) []hashTask {
	if res.task.full {
		e.onFull(res)
		return nil
	}
	return e.onPartial(res)
}

func (e *hashEngine) onPartial(res hashResult) []hashTask {
	rec := res.task.rec
	e.partialDone++

	switch {
	case res.err != nil:
		e.fail(rec, res.err)
	case res.complete:
		// the prefix covered the whole file
		rec.PartialHash = res.sum
		rec.FullHash = res.sum
		e.progress.PartialHashed.Add(1)
		e.log.ItemProcessed(logger.PhasePartialHash, rec.Path, "complete")
	default:
		rec.PartialHash = res.sum
		e.progress.PartialHashed.Add(1)
		e.log.ItemProcessed(logger.PhasePartialHash, rec.Path, "hashed")
	}

	gi := res.task.group
	e.pending[gi]--
	if e.pending[gi] > 0 {
		return nil
	}
	return e.fullTasks(gi)
}

// fullTasks queues phase 2 for a size group whose prefixes are all known.
func (e *hashEngine) fullTasks(gi int) []hashTask {
	var tasks []hashTask
	for _, bucket := range bucketBy(e.groups[gi].Records, partialKey) {
		if len(bucket) < 2 {
			continue
		}
		for _, rec := range bucket {
			if rec.FullHash != nil {
				continue
			}
			tasks = append(tasks, hashTask{rec: rec, group: gi, full: true})
		}
	}
	return tasks
}

func (e *hashEngine) onFull(res hashResult) {
	rec := res.task.rec
	e.fullDone++

	if res.err != nil {
		e.fail(rec, res.err)
		return
	}
	rec.FullHash = res.sum
	e.progress.FullHashed.Add(1)
	e.log.ItemProcessed(logger.PhaseFullHash, rec.Path, "hashed")
}

func (e *hashEngine) fail(rec *FileRecord, err error) {
	rec.Unhashable = true
	rec.PartialHash = nil
	rec.FullHash = nil
	e.progress.Unhashable.Add(1)

	w := errors.AsWarning(errors.HashError(rec.Path, err))
	e.warnings = append(e.warnings, indexedWarning{index: rec.Index, warning: w})
	e.log.Warn(w)
}

// hashWarnings returns HASH warnings in traversal order.
func (e *hashEngine) hashWarnings() []errors.Warning {
	sort.Slice(e.warnings, func(i, j int) bool {
		return e.warnings[i].index < e.warnings[j].index
	})
	out := make([]errors.Warning, 0, len(e.warnings))
	for _, w := range e.warnings {
		out = append(out, w.warning)
	}
	return out
}
