// Package badgerkv runs rowdb tables on top of Badger.
package badgerkv

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"github.com/sirupsen/logrus"

	"github.com/andreyvit/rowdb"
)

// maxConflictRetries bounds how many times a read-modify-write is retried
// after losing an optimistic transaction conflict.
const maxConflictRetries = 100

type Options struct {
	// Logger receives Badger's own log output. Defaults to the standard
	// logrus logger.
	Logger *logrus.Logger

	// InMemory keeps everything in memory; dir is ignored. Meant for tests.
	InMemory bool

	// NoSync skips fsync on writes.
	NoSync bool
}

// Store is a rowdb.Substrate backed by Badger. Every operation is a Badger
// transaction; FetchAndUpdate relies on Badger's conflict detection and is
// retried when another writer touched the same key, so its callback may run
// more than once.
type Store struct {
	db     *badger.DB
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

	var bopt badger.Options
	if opt.InMemory {
		bopt = badger.DefaultOptions("").WithInMemory(true)
		dir = ""
	} else {
		// badger doesn't create parent directories
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, &rowdb.OpenError{Backend: "badger", Path: dir, Err: err}
		}
		bopt = badger.DefaultOptions(dir)
	}
	bopt = bopt.WithLogger(log).WithSyncWrites(!opt.NoSync)

	db, err := badger.Open(bopt)
	if err != nil {
		return nil, &rowdb.OpenError{Backend: "badger", Path: dir, Err: err}
	}
	log.Debugf("badgerkv: opened %q (in_memory=%v)", dir, opt.InMemory)
	return &Store{db: db, log: log}, nil
}

// DB returns the underlying Badger database.
func (s *Store) DB() *badger.DB {
	return s.db
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (s *Store) Get(key []byte) (value []byte, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, rowdb.ErrClosed
	}
	err = s.db.View(func(txn *badger.Txn) error {
		value, err = get(txn, key)
		return err
	})
	return value, err
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return rowdb.ErrClosed
	}
	for attempt := 1; ; attempt++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt == maxConflictRetries {
			return fmt.Errorf("badger: giving up after %d conflicts: %w", attempt, err)
		}
		s.log.Debugf("badgerkv: conflict, retrying (attempt %d)", attempt)
	}
}

func (s *Store) Insert(key, value []byte) (old []byte, err error) {
	err = s.update(func(txn *badger.Txn) error {
		old, err = get(txn, key)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (s *Store) Remove(key []byte) (old []byte, err error) {
	err = s.update(func(txn *badger.Txn) error {
		old, err = get(txn, key)
		if err != nil || old == nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (s *Store) FetchAndUpdate(key []byte, f func(old []byte) ([]byte, error)) (old []byte, err error) {
	err = s.update(func(txn *badger.Txn) error {
		old, err = get(txn, key)
		if err != nil {
			return err
		}
		updated, err := f(old)
		if err != nil {
			return err
		}
		switch {
		case updated != nil:
			return txn.Set(key, rowdb.CopyValue(updated))
		case old != nil:
			return txn.Delete(key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// ScanPrefix iterates inside a read-only transaction, which sees a snapshot
// of the store as of the call. The transaction is discarded by Close.
func (s *Store) ScanPrefix(prefix []byte) rowdb.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return rowdb.ErrIterator(rowdb.ErrClosed)
	}
	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = append([]byte(nil), prefix...)
	it := txn.NewIterator(opts)
	return &iterator{txn: txn, it: it, prefix: opts.Prefix}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debugf("badgerkv: closing")
	return s.db.Close()
}

type iterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	started bool
	key     []byte
	value   []byte
	err     error
}

func (bit *iterator) Next() bool {
	if bit.it == nil || bit.err != nil {
		return false
	}
	if !bit.started {
		bit.started = true
		bit.it.Seek(bit.prefix)
	} else {
		bit.it.Next()
	}
	if !bit.it.ValidForPrefix(bit.prefix) {
		bit.key, bit.value = nil, nil
		return false
	}
	item := bit.it.Item()
	bit.key = item.KeyCopy(nil)
	v, err := item.ValueCopy(nil)
	if err != nil {
		bit.err = err
		return false
	}
	if v == nil {
		v = []byte{}
	}
	bit.value = v
	return true
}

func (bit *iterator) Key() []byte   { return bit.key }
func (bit *iterator) Value() []byte { return bit.value }
func (bit *iterator) Err() error    { return bit.err }

func (bit *iterator) Close() error {
	if bit.it == nil {
		return nil
	}
	bit.it.Close()
	bit.txn.Discard()
	bit.it = nil
	return nil
}
