package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/strict-dedupe/internal/config"
	"github.com/yuya-takeyama/strict-dedupe/internal/logging"
	"github.com/yuya-takeyama/strict-dedupe/internal/report"
	"github.com/yuya-takeyama/strict-dedupe/pkg/executor"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
	"github.com/yuya-takeyama/strict-dedupe/pkg/planner"
)

type mode int

const (
	modeDupes mode = iota
	modeRename
	modeAll
)

func (m mode) use() string {
	switch m {
	case modeDupes:
		return "dupes <dir>..."
	case modeRename:
		return "rename <dir>..."
	default:
		return "all <dir>..."
	}
}

func (m mode) short() string {
	switch m {
	case modeDupes:
		return "Move files with duplicate content into the duplicates directory"
	case modeRename:
		return "Rename files whose names clash with an earlier file"
	default:
		return "Move duplicates, then rename clashing names among the files that stay"
	}
}

func (m mode) dupes() bool   { return m != modeRename }
func (m mode) renames() bool { return m != modeDupes }

func run(cmd *cobra.Command, o *options, m mode, args []string) error {
	ctx := cmd.Context()

	closeLog := logging.SetupLogger(o.verbose, o.quiet)
	defer closeLog()
	zl := logging.GetLogger("cli")

	cfg, cfgPath, err := config.Load(config.LoadOptions{
		File:      o.configFile,
		Overrides: o.overrides(cmd),
	})
	if err != nil {
		return err
	}
	if cfgPath != "" {
		zl.Debug().Str("path", cfgPath).Msg("Loaded config file")
	}

	roots, err := absPaths(args)
	if err != nil {
		return err
	}
	if cfg.DuplicatesDir != "" {
		if cfg.DuplicatesDir, err = filepath.Abs(cfg.DuplicatesDir); err != nil {
			return fmt.Errorf("failed to resolve duplicates directory: %w", err)
		}
	}

	fs := afero.NewOsFs()
	if err := cfg.Validate(fs, roots, m.dupes()); err != nil {
		return err
	}
	algo, err := cfg.Algorithm()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	events := o.eventLogger(out, errOut)

	p := planner.New(fs, planner.Options{
		Roots:          roots,
		Excludes:       cfg.Excludes,
		DuplicatesDir:  cfg.DuplicatesDir,
		Algorithm:      algo,
		PrefixSize:     cfg.PrefixSize,
		Workers:        cfg.Workers,
		MaxSuffix:      cfg.MaxSuffix,
		FollowSymlinks: cfg.FollowSymlinks,
		Logger:         events,
	})

	done := logging.LogOperationStart(zl, "plan")
	var rep *planner.Report
	switch m {
	case modeDupes:
		rep, err = p.PlanDuplicates(ctx)
	case modeRename:
		rep, err = p.PlanRenames(ctx)
	default:
		rep, err = p.PlanAll(ctx)
	}
	done()
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	if o.planJSONFile != "" {
		if err := report.WritePlan(o.planJSONFile, rep.Plan); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
	}

	printer := report.NewPrinter(out, report.IsTerminal(out))

	if o.dryRun {
		printer.PrintPlan(rep.Plan)
		if !o.quiet {
			printer.PrintSummary(rep, nil)
			printer.PrintWarnings(rep.Plan.Warnings)
		}
		return nil
	}

	exec := executor.NewExecutor(fs, events, cfg.Concurrency)
	results := exec.Execute(ctx, rep.Plan)
	summary := executor.Summarize(results)

	if o.resultJSONFile != "" {
		if err := report.WriteResult(o.resultJSONFile, results); err != nil {
			return fmt.Errorf("failed to write result file: %w", err)
		}
	}

	if !o.quiet {
		printer.PrintSummary(rep, &summary)
		printer.PrintWarnings(rep.Plan.Warnings)
	}
	report.NewPrinter(errOut, report.IsTerminal(errOut)).PrintFailures(results)

	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d operations failed", summary.Failed)
	}
	return nil
}

// eventLogger picks how run events are shown: plain action lines when quiet,
// progress bars on an interactive terminal, and structured logs otherwise.
func (o *options) eventLogger(out, errOut io.Writer) logger.Logger {
	switch {
	case o.quiet:
		return &logger.QuietLogger{Out: out, Err: errOut}
	case o.verbose == 0 && report.IsTerminal(errOut):
		return report.NewProgressLogger(errOut)
	default:
		return &logger.ZerologLogger{Log: logging.GetLogger("planner")}
	}
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}
