package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

type datastore struct {
	entries map[string]ports.DatastoreEntry
	lock    *sync.RWMutex
}

func NewDatastore() ports.Datastore {
	return &datastore{
		entries: make(map[string]ports.DatastoreEntry),
		lock:    &sync.RWMutex{},
	}
}

func (d *datastore) Read(
	_ context.Context, key []string,
) (*ports.DatastoreEntry, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	entry, ok := d.entries[ports.DatastoreKey(key)]
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s", ports.ErrDatastoreKeyNotFound, ports.DatastoreKey(key),
		)
	}
	return copyEntry(entry), nil
}

func (d *datastore) Write(
	_ context.Context, key []string, value []byte, mode ports.DatastoreMode,
) (*ports.DatastoreEntry, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	id := ports.DatastoreKey(key)
	var current *ports.DatastoreEntry
	if entry, ok := d.entries[id]; ok {
		current = &entry
	}

	next, err := ports.NextDatastoreValue(key, current, value, mode)
	if err != nil {
		return nil, err
	}

	entry := ports.DatastoreEntry{
		Key:   append([]string{}, key...),
		Value: append([]byte{}, next...),
	}
	if current != nil {
		entry.Generation = current.Generation + 1
	}
	d.entries[id] = entry

	return copyEntry(entry), nil
}

func (d *datastore) Close() {}

func copyEntry(e ports.DatastoreEntry) *ports.DatastoreEntry {
	return &ports.DatastoreEntry{
		Key:        append([]string{}, e.Key...),
		Value:      append([]byte{}, e.Value...),
		Generation: e.Generation,
	}
}
