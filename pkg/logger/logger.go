// Package logger defines the observation hook the engine reports progress
// through. Implementations decide how (and whether) to render it; the engine
// never writes to a terminal itself.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
)

// Phase names a stage of a run.
type Phase string

const (
	PhaseScan        Phase = "scan"
	PhasePartialHash Phase = "partial-hash"
	PhaseFullHash    Phase = "full-hash"
	PhaseResolve     Phase = "resolve"
	PhaseApply       Phase = "apply"
)

// Logger receives push-based progress events. Calls for one run are made from
// a single goroutine at a time.
type Logger interface {
	// PhaseStart is called once per phase. totalItems is 0 when the total is
	// not known up front.
	PhaseStart(phase Phase, totalItems int)
	ItemProcessed(phase Phase, item string, action string)
	PhaseComplete(phase Phase, processedItems int)
	Warn(w errors.Warning)
}

// ZerologLogger forwards events to a zerolog logger at debug level and
// warnings at warn level.
type ZerologLogger struct {
	Log zerolog.Logger
}

func (l *ZerologLogger) PhaseStart(phase Phase, totalItems int) {
	l.Log.Info().Str("phase", string(phase)).Int("total", totalItems).Msg("Phase started")
}

func (l *ZerologLogger) ItemProcessed(phase Phase, item string, action string) {
	l.Log.Debug().Str("phase", string(phase)).Str("action", action).Str("path", item).Msg("Item processed")
}

func (l *ZerologLogger) PhaseComplete(phase Phase, processedItems int) {
	l.Log.Info().Str("phase", string(phase)).Int("processed", processedItems).Msg("Phase complete")
}

func (l *ZerologLogger) Warn(w errors.Warning) {
	l.Log.Warn().Str("code", string(w.Code)).Str("path", w.Path).Msg(w.Message)
}

type NullLogger struct{}

func (l *NullLogger) PhaseStart(phase Phase, totalItems int) {}

func (l *NullLogger) ItemProcessed(phase Phase, item string, action string) {}

func (l *NullLogger) PhaseComplete(phase Phase, processedItems int) {}

func (l *NullLogger) Warn(w errors.Warning) {}

// QuietLogger only prints applied actions and warnings.
type QuietLogger struct {
	Out io.Writer
	Err io.Writer
}

func (l *QuietLogger) PhaseStart(phase Phase, totalItems int) {}

func (l *QuietLogger) ItemProcessed(phase Phase, item string, action string) {
	if phase != PhaseApply || action == "skip" {
		return
	}
	fmt.Fprintf(writerOr(l.Out, os.Stdout), "%s: %s\n", action, item)
}

func (l *QuietLogger) PhaseComplete(phase Phase, processedItems int) {}

func (l *QuietLogger) Warn(w errors.Warning) {
	fmt.Fprintf(writerOr(l.Err, os.Stderr), "warning: %s\n", w)
}

// OrNull returns l, or a NullLogger when l is nil.
func OrNull(l Logger) Logger {
	if l == nil {
		return &NullLogger{}
	}
	return l
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}
