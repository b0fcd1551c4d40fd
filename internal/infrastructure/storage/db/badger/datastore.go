package dbbadger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const gcInterval = 30 * time.Minute

type datastoreEntry struct {
	Key        []string
	Value      []byte
	Generation uint64
}

func (e datastoreEntry) toPortable() *ports.DatastoreEntry {
	return &ports.DatastoreEntry{
		Key:        e.Key,
		Value:      e.Value,
		Generation: e.Generation,
	}
}

type datastore struct {
	store *badgerhold.Store
	quit  chan struct{}
	once  *sync.Once
}

// NewDatastore opens (or creates if not exists) the badger store in the
// datastore subdirectory of the given base dir. An empty dir makes the store
// in-memory.
func NewDatastore(baseDbDir string, logger badger.Logger) (ports.Datastore, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, "datastore")
	}

	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}

	ds := &datastore{store, make(chan struct{}), &sync.Once{}}
	if len(dbDir) > 0 {
		go ds.runValueLogGC()
	}
	return ds, nil
}

func (d *datastore) Read(
	_ context.Context, key []string,
) (*ports.DatastoreEntry, error) {
	var entry datastoreEntry
	if err := d.store.Get(ports.DatastoreKey(key), &entry); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf(
				"%w: %s", ports.ErrDatastoreKeyNotFound, ports.DatastoreKey(key),
			)
		}
		return nil, err
	}
	return entry.toPortable(), nil
}

func (d *datastore) Write(
	_ context.Context, key []string, value []byte, mode ports.DatastoreMode,
) (*ports.DatastoreEntry, error) {
	id := ports.DatastoreKey(key)

	var updated datastoreEntry
	if err := d.store.Badger().Update(func(tx *badger.Txn) error {
		var current *ports.DatastoreEntry
		var entry datastoreEntry
		if err := d.store.TxGet(tx, id, &entry); err != nil {
			if !errors.Is(err, badgerhold.ErrNotFound) {
				return err
			}
		} else {
			current = entry.toPortable()
		}

		next, err := ports.NextDatastoreValue(key, current, value, mode)
		if err != nil {
			return err
		}

		updated = datastoreEntry{
			Key:        key,
			Value:      next,
			Generation: entry.Generation + 1,
		}
		if current == nil {
			updated.Generation = 0
		}
		return d.store.TxUpsert(tx, id, updated)
	}); err != nil {
		return nil, err
	}

	return updated.toPortable(), nil
}

func (d *datastore) Close() {
	d.once.Do(func() {
		close(d.quit)
		if err := d.store.Close(); err != nil {
			log.WithError(err).Warn("failed to close datastore")
		}
	})
}

func (d *datastore) runValueLogGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := d.store.Badger().RunValueLogGC(0.5); err != nil &&
				!errors.Is(err, badger.ErrNoRewrite) {
				log.Error(err)
			}
		case <-d.quit:
			return
		}
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
