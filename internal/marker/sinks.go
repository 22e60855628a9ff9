package marker

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// WriterSink echoes marker labels to an io.Writer, one per line. Used for
// the operator console mirror during a live session.
type WriterSink struct {
	W io.Writer
}

// Push writes the label followed by a newline.
func (s WriterSink) Push(ev Event) error {
	_, err := fmt.Fprintf(s.W, "%s\n", ev.Label)
	return err
}

// DiscardSink drops every marker. Used when no recording pipeline is
// attached (dry runs, harness scenarios that assert on the trace instead).
type DiscardSink struct{}

// Push accepts and discards the marker.
func (DiscardSink) Push(Event) error {
	return nil
}

// StreamSink pushes marker labels as a newline-delimited string stream
// over TCP to an external recorder. This is the outlet role of the
// recording pipeline reduced to its interface: push-only, string-labeled,
// irregular rate, no acknowledgement.
type StreamSink struct {
	conn net.Conn
}

// DialStream connects to a recorder at addr (host:port). The timeout
// bounds connection establishment only; pushes use a short per-write
// deadline so a stalled recorder cannot block the frame loop.
func DialStream(addr string, timeout time.Duration) (*StreamSink, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial marker stream %s: %w", addr, err)
	}
	return &StreamSink{conn: conn}, nil
}

// Push writes the label. Write errors are returned to the adapter, which
// logs and continues; the stream is not torn down on a single failure.
func (s *StreamSink) Push(ev Event) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.conn, "%s\n", ev.Label)
	return err
}

// Close shuts the connection down.
func (s *StreamSink) Close() error {
	return s.conn.Close()
}

// MultiSink fans a marker out to several sinks in order. Every sink is
// attempted even when an earlier one fails; the errors are joined so the
// adapter's log line names all of them.
type MultiSink []Sink

// Push delivers to each sink in order.
func (m MultiSink) Push(ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Push(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
