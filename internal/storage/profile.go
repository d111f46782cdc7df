package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/easeaico/mirror-clarity/internal/types"
)

// ProfileRepo stores one JSON document per user at "profile:{userID}".
type ProfileRepo struct {
	db *badger.DB
}

// Get loads a profile or returns types.ErrProfileNotFound.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*types.ClarityProfile, error) {
	var profile types.ClarityProfile
	err := r.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, err := txn.Get(profileKey(userID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return types.ErrProfileNotFound
			}
			return err
		}
		return deserialize(item, &profile)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Create inserts p with version 1. It fails with types.ErrConflict when a
// profile for the user already exists.
func (r *ProfileRepo) Create(ctx context.Context, p *types.ClarityProfile) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", types.ErrInvalidArgument)
	}
	stored := p.Clone()
	stored.Version = 1
	data, err := serialize(stored)
	if err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := profileKey(p.UserID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: profile %q already exists", types.ErrConflict, p.UserID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return translate(err)
	}
	p.Version = 1
	return nil
}

// Update writes p only if the stored version still equals p.Version.
func (r *ProfileRepo) Update(ctx context.Context, p *types.ClarityProfile) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", types.ErrInvalidArgument)
	}
	next := p.Clone()
	next.Version = p.Version + 1
	data, err := serialize(next)
	if err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := profileKey(p.UserID)
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return types.ErrProfileNotFound
			}
			return err
		}
		var current types.ClarityProfile
		if err := deserialize(item, &current); err != nil {
			return err
		}
		if current.Version != p.Version {
			return fmt.Errorf("%w: profile %q at version %d, have %d", types.ErrConflict, p.UserID, current.Version, p.Version)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return translate(err)
	}
	p.Version = next.Version
	return nil
}
