package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/amishk599/statejobs/internal/model"
)

// MemoryStore is a map-backed JobStore used for dry runs. Nothing it holds
// survives the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[int64]model.JobRecord
}

var _ model.JobStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[int64]model.JobRecord)}
}

func (s *MemoryStore) ListSummaryHashes(_ context.Context) ([]model.SummaryHash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SummaryHash, 0, len(s.jobs))
	for id, rec := range s.jobs {
		out = append(out, model.SummaryHash{ID: id, Hash: rec.SummaryHash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (model.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return model.JobRecord{}, fmt.Errorf("job %d: %w", id, model.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec model.JobRecord) error {
	if !rec.HasID() {
		return fmt.Errorf("%w: invalid id %d", model.ErrIntegrity, rec.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) ListMissing(_ context.Context, tier model.Tier) ([]model.JobRecord, error) {
	var keep func(model.JobRecord) bool
	switch tier {
	case model.TierDetail:
		keep = func(r model.JobRecord) bool { return r.LastScraped == nil }
	case model.TierEnrichment:
		keep = func(r model.JobRecord) bool { return r.LastScraped != nil && r.Extraction == nil }
	default:
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	out := s.filter(keep)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int, enrichedOnly bool) ([]model.JobRecord, error) {
	out := s.filter(func(r model.JobRecord) bool { return !enrichedOnly || r.Extraction != nil })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishDate.Equal(out[j].PublishDate) {
			return out[i].PublishDate.After(out[j].PublishDate)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) filter(keep func(model.JobRecord) bool) []model.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.JobRecord
	for _, rec := range s.jobs {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (s *MemoryStore) Close() error { return nil }
