package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mschenken/usdaCoding/core"
	"github.com/mschenken/usdaCoding/storage"
)

// DeadLetterRepository implements storage.DeadLetterRepository for BadgerDB.
type DeadLetterRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DeadLetterRepository = (*DeadLetterRepository)(nil)

// NewDeadLetterRepository creates a new DeadLetterRepository.
func NewDeadLetterRepository(backend *Backend) (*DeadLetterRepository, error) {
	idSeq, err := backend.GetSequence(deadLetterIDSeq)
	if err != nil {
		return nil, err
	}

	return &DeadLetterRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DeadLetterRepository) Close() error {
	return r.idSeq.Release()
}

// AddDeadLetter stores a dead letter with a newly generated ID.
func (r *DeadLetterRepository) AddDeadLetter(ctx context.Context, letter *core.DeadLetter) (*core.DeadLetter, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		letter.ID = core.ID(nextID)
		letter.CreatedAt = time.Now().UTC()

		value, err := storage.MarshalDeadLetter(letter)
		if err != nil {
			return err
		}
		if err := tx.Set(makeDeadLetterKey(letter.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return letter, nil
}

// ListDeadLetters returns all dead letters ordered by ID.
func (r *DeadLetterRepository) ListDeadLetters(ctx context.Context) ([]*core.DeadLetter, error) {
	var letters []*core.DeadLetter
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(deadLetterPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				letter, err := storage.UnmarshalDeadLetter(val)
				if err != nil {
					return err
				}
				letters = append(letters, letter)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return letters, err
}

// DeleteDeadLetters removes dead letters by ID.
func (r *DeadLetterRepository) DeleteDeadLetters(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeDeadLetterKey(id)
			if _, err := tx.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return storage.ErrNotFound
				}
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}
