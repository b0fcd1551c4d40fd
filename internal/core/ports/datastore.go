package ports

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDatastoreKeyNotFound is returned when reading, replacing or appending
	// to a key that does not exist.
	ErrDatastoreKeyNotFound = errors.New("datastore key not found")
	// ErrDatastoreKeyExists is returned when creating a key that already
	// exists.
	ErrDatastoreKeyExists = errors.New("datastore key already exists")
)

// DatastoreMode tells how a write must behave with regards to the current
// state of the key.
type DatastoreMode int

const (
	DatastoreMustCreate DatastoreMode = iota
	DatastoreMustReplace
	DatastoreCreateOrReplace
	DatastoreMustAppend
	DatastoreCreateOrAppend
)

var datastoreModeToString = map[DatastoreMode]string{
	DatastoreMustCreate:      "must-create",
	DatastoreMustReplace:     "must-replace",
	DatastoreCreateOrReplace: "create-or-replace",
	DatastoreMustAppend:      "must-append",
	DatastoreCreateOrAppend:  "create-or-append",
}

func (m DatastoreMode) String() string {
	str, ok := datastoreModeToString[m]
	if !ok {
		return "unknown"
	}
	return str
}

// CanCreate returns whether the mode allows writing a missing key.
func (m DatastoreMode) CanCreate() bool {
	return m == DatastoreMustCreate || m == DatastoreCreateOrReplace ||
		m == DatastoreCreateOrAppend
}

// CanOverwrite returns whether the mode allows writing an existing key.
func (m DatastoreMode) CanOverwrite() bool {
	return m != DatastoreMustCreate
}

// IsAppend returns whether the value must be appended to the existing one.
func (m DatastoreMode) IsAppend() bool {
	return m == DatastoreMustAppend || m == DatastoreCreateOrAppend
}

// NextDatastoreValue applies the mode to the current entry (nil if missing)
// and returns the value to store.
func NextDatastoreValue(
	key []string, current *DatastoreEntry, value []byte, mode DatastoreMode,
) ([]byte, error) {
	if _, ok := datastoreModeToString[mode]; !ok {
		return nil, fmt.Errorf("unknown datastore mode %d", mode)
	}
	if current == nil {
		if !mode.CanCreate() {
			return nil, fmt.Errorf(
				"%w: %s", ErrDatastoreKeyNotFound, DatastoreKey(key),
			)
		}
		return value, nil
	}
	if !mode.CanOverwrite() {
		return nil, fmt.Errorf("%w: %s", ErrDatastoreKeyExists, DatastoreKey(key))
	}
	if mode.IsAppend() {
		next := make([]byte, 0, len(current.Value)+len(value))
		next = append(next, current.Value...)
		return append(next, value...), nil
	}
	return value, nil
}

// DatastoreEntry is a value stored under a key along with the number of
// times it's been written.
type DatastoreEntry struct {
	Key        []string
	Value      []byte
	Generation uint64
}

// Datastore is the key-value store where the daemon persists its state.
// Keys are lists of strings.
type Datastore interface {
	// Read returns the entry for the key or ErrDatastoreKeyNotFound.
	Read(ctx context.Context, key []string) (*DatastoreEntry, error)
	// Write stores the value for the key according to the given mode and
	// returns the updated entry.
	Write(
		ctx context.Context, key []string, value []byte, mode DatastoreMode,
	) (*DatastoreEntry, error)
	Close()
}

// DatastoreKey returns the flat representation of a key.
func DatastoreKey(key []string) string {
	return strings.Join(key, "/")
}
