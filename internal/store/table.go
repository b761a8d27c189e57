package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
)

// Table provides typed access to one collection. Records are keyed by a
// field of the record itself, like an object store with a key path.
type Table[T any] struct {
	store      *Store
	collection Collection
	keyOf      func(*T) string
	indexes    []Index[T]
}

// Index defines a secondary index on a table. Index values are matched case-insensitively.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewTable creates a typed table over collection c.
func NewTable[T any](s *Store, c Collection, keyOf func(*T) string) *Table[T] {
	return &Table[T]{
		store:      s,
		collection: c,
		keyOf:      keyOf,
	}
}

// WithIndex adds a secondary index maintained on every Put and Delete.
func (t *Table[T]) WithIndex(name string, keyGen func(*T) []string) *Table[T] {
	t.indexes = append(t.indexes, Index[T]{name: name, keyGen: keyGen})
	return t
}

// Collection returns the collection the table reads and writes.
func (t *Table[T]) Collection() Collection {
	return t.collection
}

// KeyOf returns the key rec is stored under.
func (t *Table[T]) KeyOf(rec *T) string {
	return t.keyOf(rec)
}

func (t *Table[T]) check(key string) error {
	if !t.store.hasCollection(t.collection) {
		return fmt.Errorf("collection %s does not exist at schema version %d", t.collection, t.store.version)
	}
	if !validKey(key) {
		return domainerrors.InvalidID(fmt.Sprintf("invalid %s key %q", t.collection, key))
	}
	return nil
}

// Get retrieves a record by key.
// Returns ErrNotFound if the record does not exist.
func (t *Table[T]) Get(tx *Tx, key string) (*T, error) {
	var rec T
	if err := t.GetInto(tx, key, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetInto decodes a record over rec, so fields missing from the stored
// value keep what rec already holds.
// Returns ErrNotFound if the record does not exist.
func (t *Table[T]) GetInto(tx *Tx, key string, rec *T) error {
	if err := t.check(key); err != nil {
		return err
	}

	if err := tx.getJSON(recordKey(t.collection, key), rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s %s: %w", t.collection, key, err)
	}
	return nil
}

// Lookup is Get with absence reported as a nil record rather than an error.
func (t *Table[T]) Lookup(tx *Tx, key string) (*T, error) {
	rec, err := t.Get(tx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Exists reports whether a record is stored under key.
func (t *Table[T]) Exists(tx *Tx, key string) (bool, error) {
	if err := t.check(key); err != nil {
		return false, err
	}
	return tx.exists(recordKey(t.collection, key))
}

// Put creates or replaces a record and its index entries.
func (t *Table[T]) Put(tx *Tx, rec *T) error {
	key := t.keyOf(rec)
	if err := t.check(key); err != nil {
		return err
	}

	if len(t.indexes) > 0 {
		old, err := t.Lookup(tx, key)
		if err != nil {
			return err
		}
		if old != nil {
			if err := t.deleteIndexes(tx, key, old); err != nil {
				return err
			}
		}
		if err := t.setIndexes(tx, key, rec); err != nil {
			return err
		}
	}

	return tx.setJSON(recordKey(t.collection, key), rec)
}

// Delete removes a record and its index entries. It reports whether the
// record existed; deleting a missing key is not an error.
func (t *Table[T]) Delete(tx *Tx, key string) (bool, error) {
	if err := t.check(key); err != nil {
		return false, err
	}

	old, err := t.Lookup(tx, key)
	if err != nil {
		return false, err
	}
	if old == nil {
		return false, nil
	}

	if err := t.deleteIndexes(tx, key, old); err != nil {
		return false, err
	}
	if err := tx.delete(recordKey(t.collection, key)); err != nil {
		return false, err
	}
	return true, nil
}

// List returns an iterator over all records in key order.
func (t *Table[T]) List(tx *Tx) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		if !t.store.hasCollection(t.collection) {
			yield(nil, fmt.Errorf("collection %s does not exist", t.collection))
			return
		}

		stop := errors.New("stop")
		err := tx.scan(recordPrefix(t.collection), false, func(key string, val []byte) error {
			var rec T
			if err := decodeStrict(val, &rec); err != nil {
				yield(nil, fmt.Errorf("%s %s: %w", t.collection, key, err))
				return stop
			}
			if !yield(&rec, nil) {
				return stop // Consumer stopped early
			}
			return nil
		})
		if err != nil && !errors.Is(err, stop) {
			yield(nil, err)
		}
	}
}

// All collects every record.
func (t *Table[T]) All(tx *Tx) ([]*T, error) {
	var out []*T
	for rec, err := range t.List(tx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ByIndex returns the records whose index value matches value.
func (t *Table[T]) ByIndex(tx *Tx, index, value string) ([]*T, error) {
	if !t.hasIndex(index) {
		return nil, fmt.Errorf("%s has no index %q", t.collection, index)
	}

	var keys []string
	err := tx.scan(indexPrefix(t.collection, index, value), true, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		rec, err := t.Lookup(tx, key)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Load reads one record in its own transaction. Absent records are nil.
func (t *Table[T]) Load(ctx context.Context, key string) (*T, error) {
	var rec *T
	err := t.store.View(ctx, func(tx *Tx) error {
		var err error
		rec, err = t.Lookup(tx, key)
		return err
	})
	return rec, err
}

// LoadAll reads every record in its own transaction.
func (t *Table[T]) LoadAll(ctx context.Context) ([]*T, error) {
	var recs []*T
	err := t.store.View(ctx, func(tx *Tx) error {
		var err error
		recs, err = t.All(tx)
		return err
	})
	return recs, err
}

// Save writes one record in its own transaction.
func (t *Table[T]) Save(ctx context.Context, rec *T) error {
	return t.store.Update(ctx, func(tx *Tx) error {
		return t.Put(tx, rec)
	})
}

// Remove deletes one record in its own transaction.
func (t *Table[T]) Remove(ctx context.Context, key string) (bool, error) {
	var existed bool
	err := t.store.Update(ctx, func(tx *Tx) error {
		var err error
		existed, err = t.Delete(tx, key)
		return err
	})
	return existed, err
}

func (t *Table[T]) hasIndex(name string) bool {
	for _, idx := range t.indexes {
		if idx.name == name {
			return true
		}
	}
	return false
}

func (t *Table[T]) setIndexes(tx *Tx, key string, rec *T) error {
	for _, idx := range t.indexes {
		for _, v := range idx.keyGen(rec) {
			if err := tx.setRaw(indexKey(t.collection, idx.name, v, key), nil); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (t *Table[T]) deleteIndexes(tx *Tx, key string, rec *T) error {
	for _, idx := range t.indexes {
		for _, v := range idx.keyGen(rec) {
			if err := tx.delete(indexKey(t.collection, idx.name, v, key)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}

// rebuildIndex drops and recreates every entry of the named index.
func (t *Table[T]) rebuildIndex(tx *Tx, name string) error {
	var idx *Index[T]
	for i := range t.indexes {
		if t.indexes[i].name == name {
			idx = &t.indexes[i]
		}
	}
	if idx == nil {
		return fmt.Errorf("%s has no index %q", t.collection, name)
	}

	var stale [][]byte
	prefix := indexCollectionPrefix(t.collection, name)
	err := tx.scan(prefix, true, func(rest string, _ []byte) error {
		stale = append(stale, []byte(string(prefix)+rest))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range stale {
		if err := tx.delete(k); err != nil {
			return err
		}
	}

	for rec, err := range t.List(tx) {
		if err != nil {
			return err
		}
		key := t.keyOf(rec)
		for _, v := range idx.keyGen(rec) {
			if err := tx.setRaw(indexKey(t.collection, name, v, key), nil); err != nil {
				return err
			}
		}
	}
	return nil
}
