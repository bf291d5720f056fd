package cli

import (
	"strings"

	"github.com/stylehub-project/news-sub000/pkg/buffer"
)

// LogWriter keeps the last lines written to it for display in the live view.
// Point a slog handler at it while the view owns the terminal.
type LogWriter struct {
	buf *buffer.RingBuffer[string]
}

func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{buf: buffer.RingN[string](maxLines)}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		w.buf.Add(line)
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Bytes()
}
