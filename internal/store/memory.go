package store

import (
	"encoding/json"
	"sync"

	"github.com/pingbadge/pingbadge-web/internal/models"
)

// MemoryStore is a mutex-guarded in-memory store, used in tests and as a
// single-instance fallback when no database is configured. Values are kept
// serialized so load/save semantics match the durable backend exactly.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string][]byte{}}
}

func (s *MemoryStore) Load(userID string) (*models.Snapshot, error) {
	s.mu.Lock()
	data, ok := s.records[storageKey(userID)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, ErrNotFound
	}
	if err := snapshot.Validate(); err != nil {
		return nil, ErrNotFound
	}
	return &snapshot, nil
}

func (s *MemoryStore) Save(userID string, snapshot *models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[storageKey(userID)] = data
	s.mu.Unlock()
	return nil
}

// Corrupt overwrites a user's record with an unparseable value. Test hook
// for the fail-safe recovery path.
func (s *MemoryStore) Corrupt(userID string) {
	s.mu.Lock()
	s.records[storageKey(userID)] = []byte("{not json")
	s.mu.Unlock()
}

var _ Store = (*MemoryStore)(nil)
