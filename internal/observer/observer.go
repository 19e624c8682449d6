// Package observer provides pipeline observers for terminals and log sinks.
package observer

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alvmarrod/ld-weaver/internal/pipeline"
	"github.com/sirupsen/logrus"
)

// Logger forwards events to a logrus logger. Log lines are emitted at
// info level, progress at debug level.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a Logger observer
func NewLogger(logger *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(logger).WithField("component", "pipeline")}
}

func (l *Logger) OnProgress(completed, total int) {
	l.entry.WithFields(logrus.Fields{"completed": completed, "total": total}).Debug("progress")
}

func (l *Logger) OnLog(line string) {
	for _, part := range strings.Split(strings.TrimSpace(line), "\n") {
		l.entry.Info(part)
	}
}

func (l *Logger) OnSummary(result pipeline.RunResult) {
	fields := logrus.Fields{
		"run_id":   result.RunID,
		"urls":     result.URLs,
		"ingested": result.Ingested,
		"triples":  result.Triples,
		"written":  result.Written,
	}
	if result.WriteErr != nil {
		l.entry.WithFields(fields).WithError(result.WriteErr).Error("run completed, output not written")
		return
	}
	l.entry.WithFields(fields).Info("run completed")
}

// Writer prints plain lines and a progress counter to an io.Writer
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer observer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (o *Writer) OnProgress(completed, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "[%d/%d]\n", completed, total)
}

func (o *Writer) OnLog(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, line)
}

func (o *Writer) OnSummary(result pipeline.RunResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if result.Ingested == 0 {
		fmt.Fprintln(o.w, "Done: no JSON-LD blocks found.")
		return
	}
	fmt.Fprintf(o.w, "Done: %d JSON-LD blocks, %d triples", result.Ingested, result.Triples)
	if result.Written {
		fmt.Fprintf(o.w, ", saved to %s", result.OutputPath)
	}
	fmt.Fprintln(o.w)
}

// Multi fans every event out to several observers in order
type Multi []pipeline.Observer

func (m Multi) OnProgress(completed, total int) {
	for _, o := range m {
		o.OnProgress(completed, total)
	}
}

func (m Multi) OnLog(line string) {
	for _, o := range m {
		o.OnLog(line)
	}
}

func (m Multi) OnSummary(result pipeline.RunResult) {
	for _, o := range m {
		o.OnSummary(result)
	}
}
