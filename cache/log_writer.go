package cache

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

type listAdder interface {
	AddToList(ctx context.Context, key, value string, maxLength int64) error
}

// LogWriter is an io.Writer that copies log output into a capped Redis list.
type LogWriter struct {
	list listAdder
	out  io.Writer
}

// NewLogWriter mirrors into list and writes through to out.
func NewLogWriter(list listAdder, out io.Writer) *LogWriter {
	return &LogWriter{list: list, out: out}
}

func (lw *LogWriter) Write(p []byte) (int, error) {
	// the log package terminates entries with a newline
	logEntry := strings.TrimRight(string(p), "\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := lw.list.AddToList(ctx, LogsKey, logEntry, maxLogs); err != nil {
		// straight to out, logging here would recurse
		_, _ = fmt.Fprintf(lw.out, "[ERROR] Failed to write log to Redis: %v\n", err)
	}
	return lw.out.Write(p)
}
