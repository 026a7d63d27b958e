package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// MemoryKeyRepository is a thread-safe in-memory KeyRepository for tests and
// local development.
type MemoryKeyRepository struct {
	mu   sync.Mutex
	keys map[string]*DoctorKey
}

func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{keys: make(map[string]*DoctorKey)}
}

func (m *MemoryKeyRepository) Create(_ context.Context, k *DoctorKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[k.Key]; ok {
		return apperr.Conflict("verification key already exists")
	}
	cp := *k
	m.keys[k.Key] = &cp
	return nil
}

func (m *MemoryKeyRepository) GetByKey(_ context.Context, key string) (*DoctorKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[key]
	if !ok {
		return nil, apperr.NotFound("verification key not found")
	}
	cp := *k
	return &cp, nil
}

func (m *MemoryKeyRepository) List(_ context.Context, unusedOnly bool, limit, offset int) ([]*DoctorKey, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*DoctorKey
	for _, k := range m.keys {
		if unusedOnly && k.IsUsed {
			continue
		}
		cp := *k
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].IssuedAt.After(all[j].IssuedAt) })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemoryKeyRepository) MarkUsed(_ context.Context, key string, userID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[key]
	if !ok || k.IsUsed {
		return apperr.Conflict("verification key has already been used")
	}
	k.IsUsed = true
	k.UsedBy = &userID
	k.UsedAt = &at
	return nil
}
