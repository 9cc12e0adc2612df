package logging

import (
	"strings"
	"sync"
)

// tail is an io.Writer that keeps the last n complete lines written to it.
type tail struct {
	mu      sync.Mutex
	max     int
	buf     []string
	partial strings.Builder
}

func newTail(n int) *tail {
	return &tail{max: n, buf: make([]string, 0, n)}
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range p {
		if b != '\n' {
			t.partial.WriteByte(b)
			continue
		}
		t.push(t.partial.String())
		t.partial.Reset()
	}
	return len(p), nil
}

// push must be called with mu held.
func (t *tail) push(line string) {
	if len(t.buf) == t.max {
		copy(t.buf, t.buf[1:])
		t.buf = t.buf[:t.max-1]
	}
	t.buf = append(t.buf, line)
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.buf))
	copy(out, t.buf)
	return out
}
