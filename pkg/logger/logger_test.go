package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/yuya-takeyama/strict-dedupe/pkg/errors"
)

func TestQuietLoggerPrintsOnlyAppliedActions(t *testing.T) {
	var out, errOut bytes.Buffer
	l := &QuietLogger{Out: &out, Err: &errOut}

	l.PhaseStart(PhaseApply, 3)
	l.ItemProcessed(PhasePartialHash, "/a/x.jpg", "hashed")
	l.ItemProcessed(PhaseApply, "/a/y.jpg", "move")
	l.ItemProcessed(PhaseApply, "/b/x.jpg", "skip")
	l.PhaseComplete(PhaseApply, 3)
	l.Warn(errors.Warning{Code: errors.ErrHash, Path: "/a/z.jpg", Message: "cannot hash"})

	assert.Equal(t, "move: /a/y.jpg\n", out.String())
	assert.Equal(t, "warning: [HASH] /a/z.jpg: cannot hash\n", errOut.String())
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &ZerologLogger{Log: zerolog.New(&buf).Level(zerolog.DebugLevel)}

	l.PhaseStart(PhaseScan, 0)
	l.ItemProcessed(PhaseScan, "/a/x.jpg", "found")
	l.Warn(errors.Warning{Code: errors.ErrScan, Path: "/a/locked", Message: "cannot scan"})

	output := buf.String()
	assert.Contains(t, output, `"phase":"scan"`)
	assert.Contains(t, output, `"path":"/a/x.jpg"`)
	assert.Contains(t, output, `"code":"SCAN"`)
	assert.Contains(t, output, `"level":"warn"`)
}

func TestOrNull(t *testing.T) {
	assert.IsType(t, &NullLogger{}, OrNull(nil))

	q := &QuietLogger{}
	assert.Same(t, q, OrNull(q))
}
