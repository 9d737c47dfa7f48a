package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// FileSlot persists a queue as <dir>/<key>.json.
type FileSlot struct {
	path string
}

// NewFileSlot creates a file-backed slot.
func NewFileSlot(dir, key string) *FileSlot {
	return &FileSlot{path: filepath.Join(dir, key+".json")}
}

// Path returns the slot file location.
func (s *FileSlot) Path() string {
	return s.path
}

// Load reads the slot; a missing file is an empty queue.
func (s *FileSlot) Load(ctx context.Context) ([]domain.Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read slot file: %w", err)
	}
	return decode(data)
}

// Save replaces the slot through a temp file and rename, so a crash never
// leaves a half-written array behind.
func (s *FileSlot) Save(ctx context.Context, jobs []domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(jobs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create slot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp slot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write slot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close slot file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace slot file: %w", err)
	}
	return nil
}
