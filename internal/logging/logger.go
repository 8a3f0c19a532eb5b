package logging

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// The level at which this logger logs. Any log messages intended for a
	// higher (more verbose) log level are ignored. Tagged loggers without a
	// level of their own follow their parent instead.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	parent *Logger

	out *destination
}

// Shared by all derived loggers. The mutex prevents messages from different
// goroutines from interleaving.
type destination struct {
	w  io.Writer
	mu sync.Mutex
}

// Write to stderr by default.
var DefaultLogger = &Logger{Level: defaultLevel, out: &destination{w: os.Stderr}}

// Override the destination for this logger and every logger derived from it.
func (log *Logger) SetDestination(out io.Writer) {
	log.out.mu.Lock()
	log.out.w = out
	log.out.mu.Unlock()
}

// Derive a new logger with the given tag. The level is looked up on every
// call, so LOGLEVEL directives and later Configure calls both apply.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{Level: log.Level, Tag: tag, parent: log, out: log.out}
}

func (log *Logger) effectiveLevel() Level {
	if log.Tag != "" {
		if l, ok := lookupTag(log.Tag); ok {
			return l
		}
	}
	if log.parent != nil {
		return log.parent.effectiveLevel()
	}
	return log.Level
}

// Enabled reports whether messages at the given level would be written.
func (log *Logger) Enabled(level Level) bool {
	return level <= log.effectiveLevel()
}

// Wrapper for []byte that implements io.Writer. Simpler and cheaper than
// bytes.Buffer.
type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *buffer) writeByte(c byte) {
	*b = append(*b, c)
}

// A global buffer pool, shared across all loggers. Initial capacity is 256 to
// accommodate *most* log lines.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make(buffer, 0, 256)
		return &b
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if !log.Enabled(level) {
		// Message is too verbose for this logger.
		return
	}

	// Grab an empty buffer from the pool.
	bp := bufPool.Get().(*buffer)
	buf := (*bp)[:0]
	defer func() {
		*bp = buf[:0]
		bufPool.Put(bp)
	}()

	buf.Write(colorize(ansiWhite))

	// Write the current timestamp.
	buf = time.Now().AppendFormat(buf, timestampFormat)

	// Write level and tag.
	fmt.Fprintf(&buf, " %s%c/%s", colorize(level.color()), level.letter(), log.Tag)

	// Get the caller of Error()/Warn()/Info()/etc.
	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}

	// Write file and line number.
	fmt.Fprintf(&buf, "[%s:%d] %s", filepath.Base(file), line, colorize(ansiReset))

	// Write formatted log message.
	fmt.Fprintf(&buf, format, a...)

	// Append newline if necessary.
	if n := len(buf); n == 0 || buf[n-1] != '\n' {
		buf.writeByte('\n')
	}

	// Lock before writing to avoid interleaving of log messages.
	log.out.mu.Lock()
	_, err := log.out.w.Write(buf)
	log.out.mu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to log to %v: %v\n", log.out.w, err)
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}

// Fatal logs at Error and exits the process.
func (log *Logger) Fatal(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
	os.Exit(1)
}

// StdLogger returns a standard library logger whose output is routed through
// this logger at the given level, e.g. for http.Server.ErrorLog.
func (log *Logger) StdLogger(level Level) *stdlog.Logger {
	return stdlog.New(&stdWriter{log, level}, "", 0)
}

type stdWriter struct {
	log   *Logger
	level Level
}

func (w *stdWriter) Write(p []byte) (int, error) {
	// The standard logger always passes exactly one line. Caller depth 3 skips
	// Write, stdlog.Output and the stdlog.Printf family.
	w.log.Log(w.level, 3, "%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}
