package link

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

const envUUID = "6f1d2c3b-8a9e-4f70-b1c2-d3e4f5a6b7c8"

func TestLoadRetriesUntilFileAppears(t *testing.T) {
	t.Parallel()

	attempts := 0
	read := func(string) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, os.ErrNotExist
		}
		return []byte(`{"uuid": "` + envUUID + `"}`), nil
	}
	l := NewLoader("environment.json", WithRetry(4, time.Millisecond), WithReadFile(read))

	id, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id.String() != envUUID {
		t.Fatalf("Load() = %s, want %s", id, envUUID)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestLoadGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	read := func(string) ([]byte, error) {
		attempts++
		return []byte(`{"uuid": ""}`), nil
	}
	l := NewLoader("environment.json", WithRetry(4, time.Millisecond), WithReadFile(read))

	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Load() error = %v, want ErrNotLinked", err)
	}
	if attempts != 5 {
		t.Fatalf("attempts = %d, want 5", attempts)
	}
}

func TestLoadInvalidUUIDIsNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	read := func(string) ([]byte, error) {
		attempts++
		return []byte(`{"uuid": "not-a-uuid"}`), nil
	}
	l := NewLoader("environment.json", WithRetry(4, time.Millisecond), WithReadFile(read))

	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrInvalidUUID) {
		t.Fatalf("Load() error = %v, want ErrInvalidUUID", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestLoadNonObjectIsNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	read := func(string) ([]byte, error) {
		attempts++
		return []byte(`["` + envUUID + `"]`), nil
	}
	l := NewLoader("environment.json", WithRetry(4, time.Millisecond), WithReadFile(read))

	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Load() error = %v, want ErrNotLinked", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestSaveAndPeek(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "environment.json")
	l := NewLoader(path)

	if _, err := l.Peek(); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Peek() on missing file error = %v, want ErrNotLinked", err)
	}

	want := uuid.MustParse(envUUID)
	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := l.Peek()
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if got != want {
		t.Fatalf("Peek() = %s, want %s", got, want)
	}
}

func TestLoadNormalizesCase(t *testing.T) {
	t.Parallel()

	read := func(string) ([]byte, error) {
		return []byte(`{"uuid": " 6F1D2C3B-8A9E-4F70-B1C2-D3E4F5A6B7C8 "}`), nil
	}
	id, err := NewLoader("x", WithReadFile(read)).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id.String() != envUUID {
		t.Fatalf("Load() = %s, want lower-case %s", id, envUUID)
	}
}
