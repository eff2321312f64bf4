package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/pterm/pterm"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
	"github.com/yuya-takeyama/strict-dedupe/pkg/logger"
)

// ProgressLogger renders run progress with a pterm spinner while scanning and
// progress bars while hashing and applying. It is meant for terminals.
type ProgressLogger struct {
	out io.Writer

	mu       sync.Mutex
	spinner  *pterm.SpinnerPrinter
	bar      *pterm.ProgressbarPrinter
	counts   map[logger.Phase]int
	warnings []errors.Warning
}

func NewProgressLogger(out io.Writer) *ProgressLogger {
	return &ProgressLogger{
		out:    out,
		counts: make(map[logger.Phase]int),
	}
}

func (l *ProgressLogger) PhaseStart(phase logger.Phase, totalItems int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch phase {
	case logger.PhaseScan:
		l.spinner, _ = pterm.DefaultSpinner.
			WithWriter(l.out).
			WithRemoveWhenDone(false).
			Start("Scanning")
	case logger.PhasePartialHash, logger.PhaseApply:
		if totalItems == 0 {
			return
		}
		title := "Hashing"
		if phase == logger.PhaseApply {
			title = "Applying"
		}
		l.bar, _ = pterm.DefaultProgressbar.
			WithWriter(l.out).
			WithTotal(totalItems).
			WithTitle(title).
			Start()
	}
}

func (l *ProgressLogger) ItemProcessed(phase logger.Phase, item string, action string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[phase]++
	n := l.counts[phase]

	switch phase {
	case logger.PhaseScan:
		if l.spinner != nil && n%100 == 0 {
			l.spinner.UpdateText(fmt.Sprintf("Scanning (%d files)", n))
		}
	case logger.PhasePartialHash, logger.PhaseApply:
		if l.bar != nil {
			l.bar.Increment()
		}
	case logger.PhaseFullHash:
		if l.bar != nil {
			l.bar.UpdateTitle(fmt.Sprintf("Hashing (%d full)", n))
		}
	}
}

func (l *ProgressLogger) PhaseComplete(phase logger.Phase, processedItems int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch phase {
	case logger.PhaseScan:
		if l.spinner != nil {
			l.spinner.Success(fmt.Sprintf("Scanned %d files", processedItems))
			l.spinner = nil
		}
	case logger.PhasePartialHash, logger.PhaseApply:
		if l.bar != nil {
			_, _ = l.bar.Stop()
			l.bar = nil
		}
	}
}

// Warn keeps warnings for the end of the run; printing them between bar
// redraws would garble the terminal.
func (l *ProgressLogger) Warn(w errors.Warning) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, w)
}

// Processed returns how many items a phase reported.
func (l *ProgressLogger) Processed(phase logger.Phase) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[phase]
}

// Warnings returns the warnings seen so far.
func (l *ProgressLogger) Warnings() []errors.Warning {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]errors.Warning(nil), l.warnings...)
}
