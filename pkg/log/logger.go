package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Only the first line of the stack ("goroutine 123 [running]:") is needed.
	stackBufSize = 32
	// Shortest stack header that still carries a goroutine id.
	minStackHeaderLen = 12
	// len("goroutine ").
	goroutinePrefixLen = 10

	unknownGoroutine = "unknown"
)

var (
	Logger    zerolog.Logger
	stackPool sync.Pool
	levelMu   sync.Mutex
)

func init() {
	stackPool.New = func() interface{} {
		return make([]byte, stackBufSize)
	}

	Configure(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}, zerolog.InfoLevel)
}

// goroutineID parses the current goroutine id from a short stack dump.
func goroutineID() string {
	buf, ok := stackPool.Get().([]byte)
	if !ok {
		return unknownGoroutine
	}
	defer stackPool.Put(buf) //nolint:staticcheck // buf is a slice, this is the correct usage

	n := runtime.Stack(buf, false)
	if n < minStackHeaderLen {
		return unknownGoroutine
	}

	idx := goroutinePrefixLen
	start := idx
	for idx < n && buf[idx] >= '0' && buf[idx] <= '9' {
		idx++
	}
	if idx == start {
		return unknownGoroutine
	}
	return string(buf[start:idx])
}

// Configure replaces the package logger with one writing to out at the given level.
func Configure(out io.Writer, level zerolog.Level) {
	levelMu.Lock()
	defer levelMu.Unlock()

	Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("goid", goroutineID())
		}))

	log.Logger = Logger
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and applies it.
func SetLevel(name string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	levelMu.Lock()
	defer levelMu.Unlock()

	Logger = Logger.Level(level)
	log.Logger = Logger
	return nil
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	_ = SetLevel("debug")
}

// Info starts an info level event.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error starts an error level event.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn starts a warning level event.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug starts a debug level event.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal starts a fatal level event; Msg exits the process.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}
