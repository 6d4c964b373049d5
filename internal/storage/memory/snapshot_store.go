package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SnapshotRecord // keyed by run_id + taken_at
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.SnapshotRecord),
	}
}

func snapshotKey(runID string, takenAtMs int64) string {
	return runID + "|" + strconv.FormatInt(takenAtMs, 10)
}

// Insert adds a new snapshot. Returns ErrDuplicateKey if (run_id, taken_at) exists.
func (s *SnapshotStore) Insert(_ context.Context, rec *domain.SnapshotRecord) error {
	if rec == nil || rec.RunID == "" || rec.TakenAt.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := snapshotKey(rec.RunID, rec.TakenAt.UnixMilli())
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	snapCopy := *rec
	s.data[key] = &snapCopy
	return nil
}

// GetByRunID retrieves all snapshots for a run, ordered by taken_at ASC.
func (s *SnapshotStore) GetByRunID(_ context.Context, runID string) ([]*domain.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SnapshotRecord
	for _, rec := range s.data {
		if rec.RunID == runID {
			snapCopy := *rec
			result = append(result, &snapCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TakenAt.Before(result[j].TakenAt)
	})

	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
