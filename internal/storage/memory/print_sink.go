package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// PrintSink складывает задания печати в память.
type PrintSink struct {
	mu   sync.Mutex
	jobs []domain.PrintJob
	err  error
}

// NewPrintSink возвращает пустую очередь печати.
func NewPrintSink() *PrintSink {
	return &PrintSink{}
}

// Fail заставляет Submit возвращать err (nil снимает сбой).
func (s *PrintSink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Submit сохраняет задание.
func (s *PrintSink) Submit(ctx context.Context, job domain.PrintJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs возвращает копию принятых заданий.
func (s *PrintSink) Jobs() []domain.PrintJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.jobs)
}

var _ domain.PrintJobSink = (*PrintSink)(nil)
