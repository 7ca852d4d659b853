package chatroom

import "sync"

// SessionRecord is the client-side state of one room session.
type SessionRecord struct {
	Username string           `json:"username"`
	RoomID   string           `json:"roomId"`
	Messages []DisplayMessage `json:"chatMessages"`
}

// SessionStore persists a SessionRecord between Room instances, the way a
// browser tab keeps its session storage across reloads.
//
// Load reports false when nothing is stored. Save overwrites. Clear removes
// the record. Implementations must not retain or modify rec.Messages.
type SessionStore interface {
	Load() (SessionRecord, bool, error)
	Save(rec SessionRecord) error
	Clear() error
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu  sync.Mutex
	rec *SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (SessionRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return SessionRecord{}, false, nil
	}
	return copyRecord(*m.rec), true, nil
}

func (m *MemoryStore) Save(rec SessionRecord) error {
	rec = copyRecord(rec)
	m.mu.Lock()
	m.rec = &rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()
	return nil
}

func copyRecord(rec SessionRecord) SessionRecord {
	rec.Messages = append([]DisplayMessage(nil), rec.Messages...)
	return rec
}
