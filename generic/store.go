/*
store.go - Key/value persistence of JSON record collections

PURPOSE:
  Defines the interface between the engine and whatever keeps the data.
  A key maps to one JSON document; for collections that document is an
  array of records. Migration flags live in the same key space.

KEY INTERFACE:
  Store: Get / Set / Delete of raw values

COLLECTION CONTRACT:
  - LoadCollection(): absent key or text that is not JSON -> empty
    collection; valid JSON that does not decode as records ->
    ErrCorruptCollection, so nothing is ever saved over it
  - SaveCollection(): the whole collection in one Set; any failure is a
    *PersistenceError and the previous value stays in place
  - There is no partial-record update. Ever.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, optional quota (tests, dev)
  - store/sqlite/sqlite.go: SQLite key/value table
  - store/postgres/postgres.go: PostgreSQL key/value table
  - store/redis/redis.go: Redis strings

EXAMPLE:
  records, err := generic.LoadCollection[caja.Record](ctx, store, "cajaData")
  records = append(records, rec)
  if err := generic.SaveCollection(ctx, store, "cajaData", records); err != nil {
      // *PersistenceError, nothing changed
  }

SEE ALSO:
  - caja/ledger.go: read-mutate-write on "cajaData"
  - migration/migration.go: whole-collection rewrites guarded by flags
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// =============================================================================
// STORE - Interface for raw value persistence
// =============================================================================

// Store persists raw values by key.
type Store interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set replaces the value for key. It either fully succeeds or leaves the
	// previous value untouched.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// =============================================================================
// COLLECTIONS
// =============================================================================

// LoadCollection decodes the array stored under key. An absent key, a null
// document or text that does not parse as JSON yields an empty slice. A
// parseable document that is not an array of T (a bad amount in one record,
// a wrong field type) is an ErrCorruptCollection error: callers must not
// write the collection back.
func LoadCollection[T any](ctx context.Context, s Store, key string) ([]T, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	if !found || len(raw) == 0 {
		return []T{}, nil
	}
	if !json.Valid(raw) {
		log.Warn().Str("key", key).Msg("unparseable collection ignored")
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("load %q: %w: %w", key, ErrCorruptCollection, err)
	}
	if out == nil {
		return []T{}, nil
	}
	return out, nil
}

// SaveCollection encodes records and writes them under key in one call.
func SaveCollection[T any](ctx context.Context, s Store, key string, records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	return nil
}

// DeleteAt removes the record at index from the collection under key. This
// is the generic row-delete used by list views; it works on raw records so
// it never rewrites a record's shape.
func DeleteAt(ctx context.Context, s Store, key string, index int) error {
	records, err := LoadCollection[json.RawMessage](ctx, s, key)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("delete %q[%d]: %w", key, index, ErrIndexOutOfRange)
	}
	records = append(records[:index], records[index+1:]...)
	return SaveCollection(ctx, s, key, records)
}

// Exists reports whether key holds a value.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

// =============================================================================
// FLAGS - Persisted booleans (migration markers)
// =============================================================================

var flagTrue = []byte("true")

// HasFlag reports whether the boolean marker name is set.
func HasFlag(ctx context.Context, s Store, name string) (bool, error) {
	raw, found, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return found && string(raw) == string(flagTrue), nil
}

// SetFlag sets the boolean marker name.
func SetFlag(ctx context.Context, s Store, name string) error {
	if err := s.Set(ctx, name, flagTrue); err != nil {
		return &PersistenceError{Key: name, Err: err}
	}
	return nil
}
