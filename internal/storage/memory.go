package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/pyaritra/prospector/internal/model"
)

type MemoryStore struct {
	mu         sync.RWMutex
	results    map[string]model.FitResult
	bestThetas map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make(map[string]model.FitResult)
	s.bestThetas = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveFitResult(_ context.Context, result model.FitResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[result.RunID] = result
	return nil
}

func (s *MemoryStore) GetFitResult(_ context.Context, runID string) (model.FitResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[runID]
	return result, ok, nil
}

func (s *MemoryStore) ListFitResultIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.results))
	for id := range s.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) DeleteFitResult(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, runID)
	delete(s.bestThetas, runID)
	return nil
}

func (s *MemoryStore) SaveBestTheta(_ context.Context, runID string, theta []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bestThetas[runID] = append([]float64(nil), theta...)
	return nil
}

func (s *MemoryStore) GetBestTheta(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	theta, ok := s.bestThetas[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), theta...), true, nil
}
