package repository

import (
	"context"
	"sync"
	"time"

	"whosaidit/models"
)

type memoryEntry struct {
	room      *models.Room
	expiresAt time.Time
}

// MemoryRoomRepository keeps rooms in process. A single mutex serialises every
// conditional update, which gives the same guarantee as the Redis transaction.
type MemoryRoomRepository struct {
	mu    sync.Mutex
	rooms map[string]*memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[string]*memoryEntry),
		ttl:   RoomTTL,
		now:   time.Now,
	}
}

func (m *MemoryRoomRepository) lookup(code string) *memoryEntry {
	e, ok := m.rooms[code]
	if !ok {
		return nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.rooms, code)
		return nil
	}
	return e
}

func (m *MemoryRoomRepository) Create(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookup(room.RoomCode) != nil {
		return ErrCodeTaken
	}
	created := room.CreatedAt
	if created.IsZero() {
		created = m.now()
	}
	m.rooms[room.RoomCode] = &memoryEntry{room: room.Clone(), expiresAt: created.Add(m.ttl)}
	return nil
}

func (m *MemoryRoomRepository) FindByCode(_ context.Context, code string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(code)
	if e == nil {
		return nil, ErrNotFound
	}
	return e.room.Clone(), nil
}

func (m *MemoryRoomRepository) ConditionalUpdate(_ context.Context, code string, pred Predicate, mutate Mutation) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.lookup(code)
	if e == nil {
		return nil, ErrNotFound
	}
	working := e.room.Clone()
	if !pred(working) {
		return nil, ErrPreconditionFailed
	}
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = m.now()
	e.room = working
	return working.Clone(), nil
}

func (m *MemoryRoomRepository) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}

// PurgeExpired drops every expired room and returns how many were removed.
func (m *MemoryRoomRepository) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	purged := 0
	for code, e := range m.rooms {
		if !now.Before(e.expiresAt) {
			delete(m.rooms, code)
			purged++
		}
	}
	return purged, nil
}
