// Package storage provides an embedded Badger backend for profiles and
// memories. It is used when no Postgres database is configured.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/easeaico/mirror-clarity/internal/types"
)

const (
	profileKeyPrefix = "profile:"
	memoryKeyPrefix  = "memory:"
	journalKeyPrefix = "journal:"
	txnRetries       = 8
)

// DB wraps a Badger database shared by the profile, memory and journal
// repositories.
type DB struct {
	db *badger.DB
}

// Open opens a Badger database at path. An empty path or inMemory opens a
// throwaway in-memory instance.
func Open(path string, inMemory bool) (*DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory || strings.TrimSpace(path) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Profiles returns the profile repository.
func (d *DB) Profiles() *ProfileRepo {
	return &ProfileRepo{db: d.db}
}

// Memories returns the memory record repository.
func (d *DB) Memories() *MemoryRepo {
	return &MemoryRepo{db: d.db}
}

// Journal returns the journal entry repository.
func (d *DB) Journal() *JournalRepo {
	return &JournalRepo{db: d.db}
}

func profileKey(userID string) []byte {
	return []byte(profileKeyPrefix + userID)
}

func memoryUserPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", memoryKeyPrefix, userID))
}

func memoryKey(userID, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", memoryKeyPrefix, userID, id))
}

func journalUserPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", journalKeyPrefix, userID))
}

// journalKey zero-pads the timestamp so keys sort chronologically.
func journalKey(userID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", journalKeyPrefix, userID, at.UnixNano(), id))
}

func serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

func deserialize(item *badger.Item, v any) error {
	return item.Value(func(raw []byte) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", item.Key(), err)
		}
		return nil
	})
}

// translate maps Badger transaction conflicts onto the engine's conflict error.
func translate(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %w", types.ErrConflict, err)
	}
	return err
}
