package planner

import (
	"context"
	"time"

	"github.com/spf13/afero"

	"github.com/yuya-takeyama/strict-dedupe/internal/checksum"
	"github.com/yuya-takeyama/strict-dedupe/internal/walker"
	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
)

// Planner builds Plans for a fixed set of roots. It holds no state between
// calls; every Plan* call is a fresh scan.
type Planner struct {
	fs   afero.Fs
	opts Options
	log  logger.Logger
}

func New(fs afero.Fs, opts Options) *Planner {
	if opts.DuplicatesDir == "" {
		opts.DuplicatesDir = DefaultDuplicatesDir
	}
	if opts.Algorithm == "" {
		opts.Algorithm = checksum.SHA256
	}
	if opts.PrefixSize <= 0 {
		opts.PrefixSize = checksum.DefaultPrefixSize
	}
	if opts.MaxSuffix <= 0 {
		opts.MaxSuffix = DefaultMaxSuffix
	}
	return &Planner{
		fs:   fs,
		opts: opts,
		log:  logger.OrNull(opts.Logger),
	}
}

// PlanDuplicates finds files with identical content and plans moving all but
// the first of each group into the duplicates directory.
func (p *Planner) PlanDuplicates(ctx context.Context) (*Report, error) {
	return p.plan(ctx, true, false)
}

// PlanRenames plans renaming files whose base name already occurs earlier in
// the traversal.
func (p *Planner) PlanRenames(ctx context.Context) (*Report, error) {
	return p.plan(ctx, false, true)
}

// PlanAll combines both: duplicate moves first, then renames of the files
// that stay.
func (p *Planner) PlanAll(ctx context.Context) (*Report, error) {
	return p.plan(ctx, true, true)
}

// run is the state of one Plan* call.
type run struct {
	*Planner
	progress *Progress
	records  []*FileRecord
	warnings []errors.Warning
}

func (p *Planner) plan(ctx context.Context, dupes, renames bool) (*Report, error) {
	start := time.Now()

	r := &run{Planner: p, progress: p.opts.Progress}
	if r.progress == nil {
		r.progress = &Progress{}
	}

	if err := r.scan(ctx); err != nil {
		return nil, err
	}

	in := BuildInput{
		FilesScanned: len(r.records),
		Algorithm:    p.opts.Algorithm,
	}

	if dupes {
		groups, err := r.findDuplicates(ctx)
		if err != nil {
			return nil, err
		}
		in.Groups = groups
		in.Destinations = NewDestinations(p.opts.DuplicatesDir, p.opts.Roots, p.exists, p.opts.MaxSuffix)
	}

	p.log.PhaseStart(logger.PhaseResolve, 0)

	if renames {
		// files that failed hashing take no part in the plan
		entries, conflicts := ResolveRenames(readable(r.records), p.exists, p.opts.MaxSuffix)
		for _, w := range conflicts {
			p.log.Warn(w)
		}
		in.Renames = entries
		r.warnings = append(r.warnings, conflicts...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in.Warnings = r.warnings
	plan := BuildPlan(in)
	for _, w := range plan.Warnings[len(in.Warnings):] {
		p.log.Warn(w)
	}

	p.log.PhaseComplete(logger.PhaseResolve, len(plan.Actions))

	return &Report{
		Plan:    plan,
		Elapsed: time.Since(start),
		Stats:   r.progress.Snapshot(),
	}, nil
}

func (r *run) scan(ctx context.Context) error {
	w := walker.NewWalker(r.fs, r.opts.Roots, walker.Options{
		Excludes:       r.opts.Excludes,
		SkipDirs:       []string{r.opts.DuplicatesDir},
		FollowSymlinks: r.opts.FollowSymlinks,
		Logger:         r.log,
	})

	warnings, err := w.Walk(ctx, func(f walker.FileRef) error {
		r.records = append(r.records, &FileRecord{
			Index:   f.Index,
			Path:    f.Path,
			Root:    f.Root,
			RelPath: f.RelPath,
			Size:    f.Size,
		})
		r.progress.FilesScanned.Add(1)
		return nil
	})
	if err != nil {
		return err
	}

	r.warnings = append(r.warnings, warnings...)
	return nil
}

func (r *run) findDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	sizeGroups, _ := GroupBySize(r.records)

	candidates := 0
	for _, g := range sizeGroups {
		candidates += len(g.Records)
	}
	r.progress.Candidates.Store(int64(candidates))

	engine := newHashEngine(r.fs, r.opts.Algorithm, r.opts.PrefixSize, r.log, r.progress)
	if err := engine.run(ctx, sizeGroups, r.opts.Workers); err != nil {
		return nil, err
	}
	r.warnings = append(r.warnings, engine.hashWarnings()...)

	return ResolveDuplicates(sizeGroups), nil
}

func (p *Planner) exists(path string) bool {
	return pathExists(p.fs, path)
}
