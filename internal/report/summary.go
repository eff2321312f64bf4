// Package report renders plans, run summaries and progress for humans, and
// writes plan and result files for machines.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/executor"
	"github.com/yuya-takeyama/strict-dedupe/pkg/planner"
)

type Printer struct {
	out io.Writer
	st  styles
}

// NewPrinter writes to out, with colors only when color is set.
func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{out: out, st: newStyles(color)}
}

// PrintPlan lists every action with its reason, the way a dry run shows it.
func (p *Printer) PrintPlan(plan *planner.Plan) {
	if len(plan.Actions) == 0 {
		fmt.Fprintln(p.out, p.st.muted.Render("Nothing to do."))
		return
	}

	for _, a := range plan.Actions {
		kind := p.st.move
		if a.Kind == planner.ActionRename {
			kind = p.st.rename
		}
		fmt.Fprintf(p.out, "%s %s -> %s\n", kind.Render(fmt.Sprintf("(dryrun) %s:", a.Kind)), a.Source, a.Destination)
		fmt.Fprintf(p.out, "    %s\n", p.st.muted.Render(a.Reason))
	}
}

// PrintSummary prints the plan statistics and, when exec is not nil, how
// the plan was applied.
func (p *Printer) PrintSummary(r *planner.Report, exec *executor.Summary) {
	s := r.Plan.Summary

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.st.title.Render("=== Summary ==="))
	p.row("Files scanned", fmt.Sprintf("%d", s.FilesScanned))
	p.row("Duplicate groups", fmt.Sprintf("%d", s.DuplicateGroups))
	p.row("Duplicate files", fmt.Sprintf("%d", s.DuplicateFiles))
	p.row("Reclaimable", formatBytes(s.ReclaimableBytes))
	renames := fmt.Sprintf("%d", s.Renames)
	if s.RenamesSuppressed > 0 {
		renames = fmt.Sprintf("%d (%d suppressed)", s.Renames, s.RenamesSuppressed)
	}
	p.row("Renames", renames)
	if r.Stats.BytesRead > 0 {
		p.row("Bytes hashed", formatBytes(r.Stats.BytesRead))
	}
	p.row("Warnings", fmt.Sprintf("%d", s.Warnings))
	p.row("Duration", r.Elapsed.Round(time.Millisecond).String())

	if exec != nil {
		p.row("Applied", p.st.ok.Render(fmt.Sprintf("%d", exec.Applied)))
		p.row("Skipped", fmt.Sprintf("%d", exec.Skipped))
		if exec.Failed > 0 {
			p.row("Failed", p.st.warning.Render(fmt.Sprintf("%d", exec.Failed)))
		}
	}
}

func (p *Printer) row(label, value string) {
	fmt.Fprintf(p.out, "%s%s\n", p.st.label.Render(label), p.st.value.Render(value))
}

// PrintWarnings lists warnings after the summary so none are missed.
func (p *Printer) PrintWarnings(warnings []errors.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.st.warning.Render(fmt.Sprintf("%d warning(s):", len(warnings))))
	for _, w := range warnings {
		fmt.Fprintf(p.out, "  %s %s: %s\n", p.st.warning.Render(string(w.Code)), w.Path, w.Message)
	}
}

// PrintFailures lists actions the executor could not apply.
func (p *Printer) PrintFailures(results []executor.Result) {
	var lines []string
	for _, r := range results {
		if r.Status != executor.StatusFailed {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s %s: %v", p.st.warning.Render("failed"), r.Action.Source, r.Error))
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, strings.Join(lines, "\n"))
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
