package postgresdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/watchdescriptor/internal/core/ports"
)

const (
	createTableQuery = `
		CREATE TABLE IF NOT EXISTS datastore (
			key        TEXT PRIMARY KEY,
			path       TEXT[] NOT NULL,
			value      BYTEA NOT NULL,
			generation BIGINT NOT NULL DEFAULT 0
		)
	`
	selectEntryQuery = `
		SELECT path, value, generation FROM datastore WHERE key = $1
	`
	selectEntryForUpdateQuery = selectEntryQuery + ` FOR UPDATE`
	lockKeyQuery              = `SELECT pg_advisory_xact_lock(hashtext($1))`
	upsertEntryQuery          = `
		INSERT INTO datastore (key, path, value, generation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, generation = EXCLUDED.generation
	`
)

type datastore struct {
	pool *pgxpool.Pool
}

// NewDatastore connects to the postgres instance at the given address and
// makes sure the datastore table exists.
func NewDatastore(ctx context.Context, dsn string) (ports.Datastore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableQuery); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create datastore table: %w", err)
	}

	return &datastore{pool}, nil
}

func (d *datastore) Read(
	ctx context.Context, key []string,
) (*ports.DatastoreEntry, error) {
	entry, err := scanEntry(d.pool.QueryRow(ctx, selectEntryQuery, ports.DatastoreKey(key)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf(
				"%w: %s", ports.ErrDatastoreKeyNotFound, ports.DatastoreKey(key),
			)
		}
		return nil, fmt.Errorf("read datastore entry: %w", err)
	}
	return entry, nil
}

// Write applies the mode within a transaction holding a lock on the key, so
// that concurrent writers, even from different processes, are serialized.
func (d *datastore) Write(
	ctx context.Context, key []string, value []byte, mode ports.DatastoreMode,
) (*ports.DatastoreEntry, error) {
	id := ports.DatastoreKey(key)

	var updated *ports.DatastoreEntry
	if err := pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockKeyQuery, id); err != nil {
			return err
		}

		current, err := scanEntry(tx.QueryRow(ctx, selectEntryForUpdateQuery, id))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			current = nil
		}

		next, err := ports.NextDatastoreValue(key, current, value, mode)
		if err != nil {
			return err
		}

		generation := uint64(0)
		if current != nil {
			generation = current.Generation + 1
		}
		if _, err := tx.Exec(
			ctx, upsertEntryQuery, id, key, next, int64(generation),
		); err != nil {
			return err
		}

		updated = &ports.DatastoreEntry{
			Key:        key,
			Value:      next,
			Generation: generation,
		}
		return nil
	}); err != nil {
		if errors.Is(err, ports.ErrDatastoreKeyNotFound) ||
			errors.Is(err, ports.ErrDatastoreKeyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("write datastore entry: %w", err)
	}

	return updated, nil
}

func (d *datastore) Close() {
	d.pool.Close()
	log.Debug("closed connection with postgres datastore")
}

func scanEntry(row pgx.Row) (*ports.DatastoreEntry, error) {
	var (
		path       []string
		value      []byte
		generation int64
	)
	if err := row.Scan(&path, &value, &generation); err != nil {
		return nil, err
	}
	return &ports.DatastoreEntry{
		Key:        path,
		Value:      value,
		Generation: uint64(generation),
	}, nil
}
