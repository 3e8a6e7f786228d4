package spider

import (
	"bytes"
	"encoding/json"
	"io"
)

// maxLineSize bounds a single buffered record. Longer lines are discarded.
const maxLineSize = 16 << 20

// RecordFunc receives each record of a streamed crawl, in stream order.
type RecordFunc func(record any)

// lineSplitter turns a byte stream into JSON records. Complete lines are
// parsed and handed to fn as soon as they arrive; a partial line waits for
// the next write. Lines that are blank or fail to parse are skipped.
type lineSplitter struct {
	fn        RecordFunc
	buf       []byte
	oversized bool

	delivered int
	skipped   int
}

func newLineSplitter(fn RecordFunc) *lineSplitter {
	return &lineSplitter{fn: fn}
}

// Write implements io.Writer. It never fails.
func (s *lineSplitter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			s.appendPartial(p)
			break
		}
		s.appendPartial(p[:i])
		s.emit()
		p = p[i+1:]
	}
	return n, nil
}

func (s *lineSplitter) appendPartial(p []byte) {
	if s.oversized {
		return
	}
	if len(s.buf)+len(p) > maxLineSize {
		s.buf = s.buf[:0]
		s.oversized = true
		return
	}
	s.buf = append(s.buf, p...)
}

func (s *lineSplitter) emit() {
	line := bytes.TrimSpace(s.buf)
	oversized := s.oversized
	s.buf = s.buf[:0]
	s.oversized = false

	if oversized {
		s.skipped++
		return
	}
	if len(line) == 0 {
		return
	}
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		s.skipped++
		return
	}
	s.delivered++
	s.fn(v)
}

// Flush emits a trailing line that was not newline-terminated.
func (s *lineSplitter) Flush() {
	if len(s.buf) > 0 || s.oversized {
		s.emit()
	}
}

// consumeStream feeds body through a splitter until EOF or a read error. A
// read error ends consumption without flushing the partial line.
func consumeStream(body io.Reader, fn RecordFunc) (*lineSplitter, error) {
	s := newLineSplitter(fn)
	if _, err := io.Copy(s, body); err != nil {
		return s, err
	}
	s.Flush()
	return s, nil
}
