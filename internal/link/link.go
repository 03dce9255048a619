// Package link reads environment.json, which binds this edge to a remote
// environment. The file is written by a separate linking process, so a
// read may race with that writer; Load retries with a short fixed delay.
package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

var (
	// ErrNotLinked means no usable link was found after all attempts.
	ErrNotLinked = errors.New("environment not linked")
	// ErrInvalidUUID means the file holds a uuid that does not parse.
	ErrInvalidUUID = errors.New("environment uuid is invalid")
)

const (
	DefaultRetries    = 5
	DefaultRetryDelay = 200 * time.Millisecond
)

// Loader loads the linked environment UUID.
type Loader struct {
	path     string
	retries  uint64
	delay    time.Duration
	readFile func(string) ([]byte, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithRetry sets how many extra attempts follow the first one, and the
// delay between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(l *Loader) {
		if retries < 0 {
			retries = 0
		}
		l.retries = uint64(retries)
		l.delay = delay
	}
}

// WithReadFile overrides how the file is read.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(l *Loader) { l.readFile = fn }
}

func NewLoader(path string, opts ...Option) *Loader {
	l := &Loader{
		path:     path,
		retries:  DefaultRetries,
		delay:    DefaultRetryDelay,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) Path() string { return l.path }

// Load returns the normalized environment UUID. A missing file, malformed
// JSON or empty uuid is retried; a non-object document or an unparseable
// uuid fails immediately.
func (l *Loader) Load(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	op := func() error {
		var err error
		id, err = l.readOnce()
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(l.delay), l.retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, ErrInvalidUUID) || errors.Is(err, ErrNotLinked) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("%w: %w", ErrNotLinked, err)
	}
	return id, nil
}

// Peek reads the file once without retrying.
func (l *Loader) Peek() (uuid.UUID, error) {
	id, err := l.readOnce()
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return uuid.Nil, perm.Err
		}
		if errors.Is(err, ErrNotLinked) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("%w: %w", ErrNotLinked, err)
	}
	return id, nil
}

func (l *Loader) readOnce() (uuid.UUID, error) {
	data, err := l.readFile(l.path)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read %s: %w", l.path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return uuid.Nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return uuid.Nil, backoff.Permanent(fmt.Errorf("%w: %s must contain a JSON object", ErrNotLinked, l.path))
	}

	raw, _ := obj["uuid"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s has no uuid field", l.path)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, backoff.Permanent(fmt.Errorf("%w: %q: %w", ErrInvalidUUID, raw, err))
	}
	return id, nil
}

// Save writes a link file. Used by tooling and tests.
func Save(path string, id uuid.UUID) error {
	data, err := json.Marshal(map[string]string{"uuid": id.String()})
	if err != nil {
		return fmt.Errorf("marshal environment link: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write environment link: %w", err)
	}
	return nil
}
