package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oicur0t/ratelog/internal/logbuffer"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Sketch(module, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, module+": "+fmt.Sprintf(format, args...))
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestWatcher_FromStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o600))

	sink := &recordingSink{}
	w := NewWatcher([]File{{Path: path, Module: "app", FromStart: true}}, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"app: first", "app: second"}, sink.snapshot())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_DefaultModuleAndBuffer_Inotify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	require.NoError(t, os.WriteFile(path, []byte("100% busy\n"), 0o600))

	buf, err := logbuffer.New(logbuffer.DefaultConfig())
	require.NoError(t, err)

	w := NewWatcher([]File{{Path: path, FromStart: true}}, buf, nil, WithInotify())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	assert.Eventually(t, func() bool {
		return buf.LinesContain("[worker.log] 100% busy") == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_SkipsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o600))

	sink := &recordingSink{}
	w := NewWatcher([]File{{Path: path, Module: "svc"}}, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// The tail opens asynchronously, so keep appending until one lands.
	assert.Eventually(t, func() bool {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return false
		}
		_, _ = f.WriteString("new\n")
		_ = f.Close()
		return len(sink.snapshot()) > 0
	}, 5*time.Second, 100*time.Millisecond)

	for _, line := range sink.snapshot() {
		assert.Equal(t, "svc: new", line)
	}
}
