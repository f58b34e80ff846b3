// Package pebblekv runs rowdb tables on top of a Pebble LSM store.
package pebblekv

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/sirupsen/logrus"

	"github.com/andreyvit/rowdb"
)

type Options struct {
	// Logger receives Pebble's own log output. Defaults to the standard
	// logrus logger.
	Logger *logrus.Logger

	// InMemory keeps all files in memory; dir is ignored. Meant for tests.
	InMemory bool

	// NoSync skips fsync on writes.
	NoSync bool

	// CacheSize is the block cache size in bytes; Pebble's default if zero.
	CacheSize int64
}

// Store is a rowdb.Substrate backed by Pebble.
//
// Pebble has no read-modify-write primitive, so writes that need the previous
// value are serialized with a mutex. This makes FetchAndUpdate atomic within
// one process, which is the only way Pebble can be opened anyway (it holds a
// lock on the directory).
type Store struct {
	db     *pebble.DB
	wopt   *pebble.WriteOptions
	log    *logrus.Logger
	mu     sync.RWMutex
	closed bool
}

var _ rowdb.Substrate = (*Store)(nil)

func Open(dir string, opt Options) (*Store, error) {
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	popt := &pebble.Options{
		Logger: log,
	}
	if opt.InMemory {
		popt.FS = vfs.NewMem()
		dir = ""
	} else {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, &rowdb.OpenError{Backend: "pebble", Path: dir, Err: err}
		}
	}
	if opt.CacheSize > 0 {
		cache := pebble.NewCache(opt.CacheSize)
		defer cache.Unref()
		popt.Cache = cache
	}

	db, err := pebble.Open(dir, popt)
	if err != nil {
		return nil, &rowdb.OpenError{Backend: "pebble", Path: dir, Err: err}
	}
	log.Debugf("pebblekv: opened %q (in_memory=%v)", dir, opt.InMemory)

	wopt := pebble.Sync
	if opt.NoSync {
		wopt = pebble.NoSync
	}
	return &Store{db: db, wopt: wopt, log: log}, nil
}

// DB returns the underlying Pebble database.
func (s *Store) DB() *pebble.DB {
	return s.db
}

func (s *Store) getLocked(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()
	return rowdb.CopyValue(val), nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, rowdb.ErrClosed
	}
	return s.getLocked(key)
}

func (s *Store) Insert(key, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, rowdb.ErrClosed
	}
	old, err := s.getLocked(key)
	if err != nil {
		return nil, err
	}
	err = s.db.Set(key, value, s.wopt)
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (s *Store) Remove(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, rowdb.ErrClosed
	}
	old, err := s.getLocked(key)
	if err != nil || old == nil {
		return nil, err
	}
	err = s.db.Delete(key, s.wopt)
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (s *Store) FetchAndUpdate(key []byte, f func(old []byte) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, rowdb.ErrClosed
	}
	old, err := s.getLocked(key)
	if err != nil {
		return nil, err
	}
	updated, err := f(old)
	if err != nil {
		return nil, err
	}
	switch {
	case updated != nil:
		err = s.db.Set(key, updated, s.wopt)
	case old != nil:
		err = s.db.Delete(key, s.wopt)
	}
	if err != nil {
		return nil, err
	}
	return old, nil
}

// ScanPrefix iterates over a snapshot taken when it is called, so writes made
// while iterating are not observed.
func (s *Store) ScanPrefix(prefix []byte) rowdb.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return rowdb.ErrIterator(rowdb.ErrClosed)
	}
	snap := s.db.NewSnapshot()
	it, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: rowdb.PrefixEnd(prefix),
	})
	if err != nil {
		snap.Close()
		return rowdb.ErrIterator(fmt.Errorf("pebble: iterator: %w", err))
	}
	return &iterator{snap: snap, it: it}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debugf("pebblekv: closing")
	return s.db.Close()
}

type iterator struct {
	snap    *pebble.Snapshot
	it      *pebble.Iterator
	started bool
	value   []byte
	err     error
}

func (pit *iterator) Next() bool {
	if pit.it == nil {
		return false
	}
	var ok bool
	if !pit.started {
		pit.started = true
		ok = pit.it.First()
	} else {
		ok = pit.it.Next()
	}
	if !ok {
		pit.err = pit.it.Error()
		return false
	}
	val, err := pit.it.ValueAndErr()
	if err != nil {
		pit.err = err
		return false
	}
	pit.value = rowdb.CopyValue(val)
	return true
}

func (pit *iterator) Key() []byte {
	if pit.it == nil || !pit.it.Valid() {
		return nil
	}
	return pit.it.Key()
}

func (pit *iterator) Value() []byte {
	return pit.value
}

func (pit *iterator) Err() error {
	return pit.err
}

func (pit *iterator) Close() error {
	if pit.it == nil {
		return nil
	}
	err := pit.it.Close()
	pit.it = nil
	if serr := pit.snap.Close(); err == nil {
		err = serr
	}
	return err
}
