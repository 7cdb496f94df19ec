// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerConfig configures the embedded store.
type BadgerConfig struct {
	// Dir is the on-disk directory. Empty keeps everything in memory.
	Dir string
}

// Badger persists tier preferences in an embedded database so they survive a
// restart of a single-node deployment. Expiry is enforced by Badger.
type Badger struct {
	db *badger.DB
}

func NewBadger(cfg BadgerConfig, logger zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(nil).
		WithInMemory(cfg.Dir == "")

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", cfg.Dir, err)
	}
	logger.Info().Str("dir", cfg.Dir).Bool("in_memory", cfg.Dir == "").Msg("tier cache backed by badger")
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) (string, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("badger get: %w", err)
	}
	return string(value), nil
}

func (b *Badger) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := badger.NewEntry([]byte(key), []byte(value))
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	if err := b.db.Update(func(txn *badger.Txn) error { return txn.SetEntry(e) }); err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (b *Badger) Delete(_ context.Context, key string) error {
	if err := b.db.Update(func(txn *badger.Txn) error { return txn.Delete([]byte(key)) }); err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Ping fails once the database is closed.
func (b *Badger) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

// RunGC reclaims value log space every interval until ctx is done.
func (b *Badger) RunGC(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for b.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

func (b *Badger) Close() error {
	return b.db.Close()
}
