package repository

import "time"

// SetClock replaces the repository clock in tests.
func SetClock(m *MemoryRoomRepository, now func() time.Time) {
	m.now = now
}
