package logbuffer

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// scratch is a fixed-capacity render area. Writes past capacity are
// discarded without error so formatting always completes.
type scratch struct {
	buf       []byte
	n         int
	truncated bool
}

func newScratch(size int) *scratch {
	return &scratch{buf: make([]byte, size)}
}

func (s *scratch) reset() {
	s.n = 0
	s.truncated = false
}

func (s *scratch) Write(p []byte) (int, error) {
	free := len(s.buf) - s.n
	if len(p) > free {
		s.truncated = true
	}
	s.n += copy(s.buf[s.n:], p)
	return len(p), nil
}

// String returns the rendered text. A multi-byte sequence cut by truncation
// is dropped rather than stored half-written.
func (s *scratch) String() string {
	out := s.buf[:s.n]
	if s.truncated && len(out) > 0 {
		i := len(out) - 1
		for i > 0 && !utf8.RuneStart(out[i]) {
			i--
		}
		if !utf8.FullRune(out[i:]) {
			out = out[:i]
		}
	}
	return string(out)
}

// renderf formats into the scratch area. Without args the format is taken literally.
func (s *scratch) renderf(format string, args []any) string {
	s.reset()
	if len(args) == 0 {
		io.WriteString(s, format)
	} else {
		fmt.Fprintf(s, format, args...)
	}
	return s.String()
}

func (s *scratch) render(text string) string {
	s.reset()
	io.WriteString(s, text)
	return s.String()
}
