package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// memoryDoc is the persisted form of a record; MemoryRecord hides its
// embedding from JSON.
type memoryDoc struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Text      string             `json:"text"`
	Embedding []float32          `json:"embedding"`
	Source    types.MemorySource `json:"source"`
	CreatedAt time.Time          `json:"created_at"`
}

func toDoc(rec types.MemoryRecord) memoryDoc {
	return memoryDoc{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Text:      rec.Text,
		Embedding: rec.Embedding,
		Source:    rec.Source,
		CreatedAt: rec.CreatedAt,
	}
}

func (d memoryDoc) record() types.MemoryRecord {
	return types.MemoryRecord{
		ID:        d.ID,
		UserID:    d.UserID,
		Text:      d.Text,
		Embedding: d.Embedding,
		Source:    d.Source,
		CreatedAt: d.CreatedAt,
	}
}

// MemoryRepo stores records at "memory:{userID}:{id}".
type MemoryRepo struct {
	db *badger.DB
}

// Insert stores rec unless the key is taken, in which case the existing record
// is returned with inserted=false.
func (r *MemoryRepo) Insert(ctx context.Context, rec types.MemoryRecord) (types.MemoryRecord, bool, error) {
	data, err := serialize(toDoc(rec))
	if err != nil {
		return types.MemoryRecord{}, false, err
	}
	key := memoryKey(rec.UserID, rec.ID)

	for attempt := 0; attempt < txnRetries; attempt++ {
		var (
			stored   = rec
			inserted bool
		)
		err = r.db.Update(func(txn *badger.Txn) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := txn.Get(key)
			if err == nil {
				var existing memoryDoc
				if err := deserialize(item, &existing); err != nil {
					return err
				}
				stored = existing.record()
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			inserted = true
			return txn.Set(key, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return types.MemoryRecord{}, false, err
		}
		return stored, inserted, nil
	}
	return types.MemoryRecord{}, false, translate(err)
}

// Find returns nil, nil when no record exists.
func (r *MemoryRepo) Find(ctx context.Context, userID, id string) (*types.MemoryRecord, error) {
	var found *types.MemoryRecord
	err := r.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := txn.Get(memoryKey(userID, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		var doc memoryDoc
		if err := deserialize(item, &doc); err != nil {
			return err
		}
		rec := doc.record()
		found = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find memory: %w", err)
	}
	return found, nil
}

// ListByUser returns every record of userID, oldest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]types.MemoryRecord, error) {
	records := make([]types.MemoryRecord, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = memoryUserPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc memoryDoc
			if err := deserialize(it.Item(), &doc); err != nil {
				return err
			}
			// user ids may contain ':' so the prefix alone is not exact
			if doc.UserID != userID {
				continue
			}
			records = append(records, doc.record())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
