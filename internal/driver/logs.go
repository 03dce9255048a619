package driver

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// LogForwarder follows driver container logs into the edge log. At most
// one forwarding task runs per container name.
type LogForwarder struct {
	docker client.APIClient
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*forwardTask
	wg    sync.WaitGroup
}

type forwardTask struct {
	done  chan struct{}
	lines atomic.Int64
}

func (t *forwardTask) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func NewLogForwarder(docker client.APIClient) *LogForwarder {
	ctx, cancel := context.WithCancel(context.Background())
	return &LogForwarder{
		docker: docker,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*forwardTask),
	}
}

// Start begins forwarding logs for name in the background. It returns
// false when a task for name is still running.
func (f *LogForwarder) Start(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.tasks[name]; ok && t.alive() {
		return false
	}
	t := &forwardTask{done: make(chan struct{})}
	f.tasks[name] = t
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer close(t.done)
		f.forward(name, t)
	}()
	return true
}

// Active reports whether a forwarding task for name is running.
func (f *LogForwarder) Active(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[name]
	return ok && t.alive()
}

// Lines returns how many lines have been forwarded for name.
func (f *LogForwarder) Lines(name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[name]; ok {
		return t.lines.Load()
	}
	return 0
}

// Running reports how many forwarding tasks are alive.
func (f *LogForwarder) Running() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tasks {
		if t.alive() {
			n++
		}
	}
	return n
}

// Wait blocks until every task has ended or ctx is done.
func (f *LogForwarder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels all tasks and waits for them to end.
func (f *LogForwarder) Stop() {
	f.cancel()
	f.wg.Wait()
}

func (f *LogForwarder) forward(name string, t *forwardTask) {
	log := slog.With("component", "driver-logs", "container", name)

	rc, err := f.docker.ContainerLogs(f.ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "all",
	})
	if err != nil {
		log.Warn("Failed to attach to container logs.", "err", err)
		return
	}
	defer rc.Close()

	stdout := &lineWriter{log: log.With("stream", "stdout"), lines: &t.lines}
	stderr := &lineWriter{log: log.With("stream", "stderr"), lines: &t.lines}
	_, err = stdcopy.StdCopy(stdout, stderr, rc)
	stdout.flush()
	stderr.flush()

	if err != nil && f.ctx.Err() == nil {
		log.Warn("Log forwarding ended with error.", "lines", t.lines.Load(), "err", err)
		return
	}
	log.Info("Log forwarding ended.", "lines", t.lines.Load())
}

// lineWriter logs each complete non-empty line written to it.
type lineWriter struct {
	log   *slog.Logger
	lines *atomic.Int64
	buf   []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	s := strings.TrimSpace(string(line))
	if s == "" {
		return
	}
	w.lines.Add(1)
	w.log.Info(s)
}
