package debug

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (camera opened, abilities, catalogue size)
	LevelLive    = 2 // Live info (commands dispatched, shell spawns)
	LevelVerbose = 3 // Verbose (raw responses, parsing details)
	LevelTrace   = 4 // Trace (GPIO, very low level)
)

var (
	level  int
	logger = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.PanicLevel)
	l.SetFormatter(textFormatter())
	return l
}

func textFormatter() *logrus.TextFormatter {
	return &logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	}
}

// Init initializes the debug system with a level (0-4) and a log format
// ("text" or "json").
// 0 = no output
// 1 = important info (camera opened, abilities, catalogue size)
// 2 = live info (commands dispatched, shell spawns)
// 3 = verbose (raw responses, parsing details)
// 4 = trace (GPIO, very low level)
func Init(debugLevel int, format string) {
	level = debugLevel
	switch {
	case level >= LevelTrace:
		logger.SetLevel(logrus.TraceLevel)
	case level >= LevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case level >= LevelInfo:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.PanicLevel)
	}

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(textFormatter())
	}
}

// SetOutput redirects all debug output (e.g. to tee it into the web status stream).
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Infof(format, args...)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo {
		logger.WithField(name, value).Info("value")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive {
		logger.WithField("stage", "live").Infof(format, args...)
	}
}

// Command prints a session event for one command (level 2).
func Command(id, event, mode, payload string) {
	if level >= LevelLive {
		logger.WithFields(logrus.Fields{
			"cmd":   id,
			"mode":  mode,
			"event": event,
		}).Info(payload)
	}
}

// Spawn prints a child process start (level 2).
func Spawn(program string, args []string, pid int) {
	if level >= LevelLive {
		logger.WithFields(logrus.Fields{
			"program": program,
			"pid":     pid,
		}).Infof("spawned %s", strings.Join(args, " "))
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose {
		logger.Debugf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose {
		logger.Debugf("%s: %+v", name, v)
	}
}

// Section prints a section header (level 3).
func Section(name string) {
	if level >= LevelVerbose {
		logger.WithField("section", name).Debug("━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose {
		logger.Debugf("Step %d: %s", num, description)
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace {
		logger.Tracef(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace {
		logger.WithFields(logrus.Fields{"pin": pin, "value": value}).Trace(operation)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && err != nil {
		logger.WithError(err).Error("error")
	}
}
