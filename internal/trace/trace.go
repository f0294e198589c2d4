// Package trace writes the optional publish trace log: one line per
// delivered PUBLISH, tab-separated time/topic/value, as consumed by the
// federation's post-run analysis tooling (out of scope here).
package trace

import (
	"bufio"
	"fmt"
	"io"
)

const header = "#nanoseconds\ttopic\tvalue"

// Sink writes trace lines to an underlying writer, buffering to avoid a
// syscall per publish in a hot loop.
type Sink struct {
	w       *bufio.Writer
	closer  io.Closer
}

// Open wraps w as a Sink and writes the header line. If w also implements
// io.Closer, Close will close it.
func Open(w io.Writer) (*Sink, error) {
	s := &Sink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if _, err := s.w.WriteString(header + "\n"); err != nil {
		return nil, fmt.Errorf("trace: writing header: %w", err)
	}
	return s, nil
}

// Record appends one "<timeGranted>\t<topic>\t<value>" line.
func (s *Sink) Record(timeGranted uint64, topic string, value []byte) error {
	if _, err := fmt.Fprintf(s.w, "%d\t%s\t%s\n", timeGranted, topic, value); err != nil {
		return fmt.Errorf("trace: writing record: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the underlying writer, if
// closeable.
func (s *Sink) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("trace: flush: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
