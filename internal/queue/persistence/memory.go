package persistence

import (
	"context"
	"sync"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// MemorySlot keeps the encoded queue in memory. Jobs still go through the
// JSON encoding, so it behaves like a durable slot within one process.
type MemorySlot struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

// NewMemorySlot creates an empty slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Load decodes the last saved queue.
func (s *MemorySlot) Load(ctx context.Context) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decode(s.data)
}

// Save encodes and keeps jobs, unless a failure was injected.
func (s *MemorySlot) Save(ctx context.Context, jobs []domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}

	data, err := encode(jobs)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

// FailSaves makes every following Save return err; nil restores saving.
func (s *MemorySlot) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Saves counts successful saves.
func (s *MemorySlot) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Raw returns the encoded queue.
func (s *MemorySlot) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}
