package logging

import (
	"io"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFile is the log path relative to the XDG state directory.
const LogFile = "strict-dedupe/strict-dedupe.log"

// LevelFor maps the -v count to a level. quiet wins over verbosity.
func LevelFor(verbosity int, quiet bool) zerolog.Level {
	if quiet {
		return zerolog.ErrorLevel
	}
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// SetupLogger configures the global logger to write to stderr and, when it
// can be opened, an append-only file under the XDG state directory. The
// returned function closes that file.
func SetupLogger(verbosity int, quiet bool) func() {
	zerolog.SetGlobalLevel(LevelFor(verbosity, quiet))

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}
	writers := []io.Writer{consoleWriter}

	closeFile := func() {}
	path, err := xdg.StateFile(LogFile)
	if err == nil {
		var f *os.File
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			writers = append(writers, f)
			closeFile = func() { _ = f.Close() }
		}
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()

	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to open log file, logging to console only")
	}

	// Add caller information for debug and trace levels
	if verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", verbosity).Str("logFile", path).Msg("Logger initialized")
	return closeFile
}

// GetLogger returns a logger tagged with the given component name
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LogOperationStart logs the start of an operation and returns a function to log its completion
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().
		Str("operation", operation).
		Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
