package storage

import (
	"context"
	"errors"
	"sync"

	"graphgolf/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	graphs      map[string]model.GraphRecord
	runs        map[string]model.RunRecord
	runOrder    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.graphs = make(map[string]model.GraphRecord)
	s.runs = make(map[string]model.RunRecord)
	s.runOrder = nil
	return nil
}

func (s *MemoryStore) SaveGraph(_ context.Context, record model.GraphRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	record.Edges = append([]model.Edge(nil), record.Edges...)
	s.graphs[record.ID] = record
	return nil
}

func (s *MemoryStore) GetGraph(_ context.Context, id string) (model.GraphRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.graphs[id]
	if !ok {
		return model.GraphRecord{}, false, nil
	}
	record.Edges = append([]model.Edge(nil), record.Edges...)
	return record, true, nil
}

func (s *MemoryStore) BestGraph(_ context.Context, order, degree int) (model.GraphRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  model.GraphRecord
		found bool
	)
	for _, record := range s.graphs {
		if record.Order != order || record.Degree != degree {
			continue
		}
		if !found || better(record, best) || (!better(best, record) && record.ID < best.ID) {
			best, found = record, true
		}
	}
	if !found {
		return model.GraphRecord{}, false, nil
	}
	best.Edges = append([]model.Edge(nil), best.Edges...)
	return best, true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	if _, ok := s.runs[run.ID]; !ok {
		s.runOrder = append(s.runOrder, run.ID)
	}
	run.Progress = append([]model.ProgressPoint(nil), run.Progress...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.Progress = append([]model.ProgressPoint(nil), run.Progress...)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runOrder))
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		run := s.runs[s.runOrder[i]]
		run.Progress = append([]model.ProgressPoint(nil), run.Progress...)
		out = append(out, run)
	}
	return out, nil
}
