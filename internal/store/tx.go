package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Tx is a handle to one transaction. It is only valid inside the View or
// Update callback that received it.
type Tx struct {
	store    *Store
	txn      *badger.Txn
	ctx      context.Context
	writable bool
}

// Context returns the context the transaction was started with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// getJSON decodes the value at key into dest, rejecting unknown fields.
func (tx *Tx) getJSON(key []byte, dest any) error {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}

	return item.Value(func(val []byte) error {
		return decodeStrict(val, dest)
	})
}

// setJSON encodes value and writes it at key.
func (tx *Tx) setJSON(key []byte, value any) error {
	if !tx.writable {
		return errReadOnly
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := tx.txn.Set(key, data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// setRaw writes raw bytes at key.
func (tx *Tx) setRaw(key, value []byte) error {
	if !tx.writable {
		return errReadOnly
	}
	return tx.txn.Set(key, value)
}

// exists checks if a key exists.
func (tx *Tx) exists(key []byte) (bool, error) {
	_, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// delete removes a key.
func (tx *Tx) delete(key []byte) error {
	if !tx.writable {
		return errReadOnly
	}
	if err := tx.txn.Delete(key); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// scan calls fn for every key under prefix, in key order. The key passed to
// fn has the prefix stripped. Values are only valid during the call.
func (tx *Tx) scan(prefix []byte, keysOnly bool, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := tx.ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		key := string(item.Key()[len(prefix):])

		if keysOnly {
			if err := fn(key, nil); err != nil {
				return err
			}
			continue
		}

		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// count returns the number of records in c.
func (tx *Tx) count(c Collection) (int, error) {
	n := 0
	err := tx.scan(recordPrefix(c), true, func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

// decodeStrict unmarshals data into dest and fails on fields dest does not declare.
func decodeStrict(data []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}
