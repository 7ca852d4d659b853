// Package pebblestore keeps a chatroom.SessionRecord in a Pebble database so
// that a session survives the client process restarting, the same way
// browser session storage survives a page reload.
package pebblestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"

	"github.com/Eternal-Darkness-07/chat-Plus-Plus/chatroom"
)

// Keys mirror the entries a browser client keeps per tab.
const (
	keyUsername = "username"
	keyRoomID   = "roomId"
	keyMessages = "chatMessages"
)

// Store is a chatroom.SessionStore. Each scope (one per "tab") owns its own
// three keys, so several sessions can share a database directory.
type Store struct {
	db    *pebble.DB
	scope string
}

var _ chatroom.SessionStore = (*Store)(nil)

// Open opens or creates the database in dir.
func Open(dir, scope string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("pebblestore: empty directory")
	}
	if scope == "" {
		scope = "default"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", dir, err)
	}
	return &Store{db: db, scope: scope}, nil
}

func (s *Store) key(name string) []byte {
	return []byte(s.scope + "/" + name)
}

func (s *Store) get(name string) ([]byte, bool, error) {
	v, closer, err := s.db.Get(s.key(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

// Load reads the record. A missing username or room id means no record.
func (s *Store) Load() (chatroom.SessionRecord, bool, error) {
	var rec chatroom.SessionRecord
	user, ok, err := s.get(keyUsername)
	if err != nil || !ok {
		return rec, false, err
	}
	room, ok, err := s.get(keyRoomID)
	if err != nil || !ok {
		return rec, false, err
	}
	rec.Username, rec.RoomID = string(user), string(room)

	raw, ok, err := s.get(keyMessages)
	if err != nil {
		return rec, false, err
	}
	if ok {
		if err := json.Unmarshal(raw, &rec.Messages); err != nil {
			return chatroom.SessionRecord{}, false, fmt.Errorf("pebblestore: decode messages: %w", err)
		}
	}
	return rec, true, nil
}

// Save overwrites all three keys in one synced batch.
func (s *Store) Save(rec chatroom.SessionRecord) error {
	msgs, err := json.Marshal(rec.Messages)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(s.key(keyUsername), []byte(rec.Username), nil); err != nil {
		return err
	}
	if err := b.Set(s.key(keyRoomID), []byte(rec.RoomID), nil); err != nil {
		return err
	}
	if err := b.Set(s.key(keyMessages), msgs, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// Clear deletes the record.
func (s *Store) Clear() error {
	b := s.db.NewBatch()
	defer b.Close()
	for _, name := range []string{keyUsername, keyRoomID, keyMessages} {
		if err := b.Delete(s.key(name), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
