package rowdb

import (
	"bytes"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// All rows live in a single flat bucket; namespacing is done with key prefixes.
var boltRootBucket = []byte("rowdb")

// boltScanBatch is how many pairs a scan reads per read-only transaction.
// Scans never keep a Bolt transaction open between batches, so callers can
// write to the store while iterating.
const boltScanBatch = 256

type boltSubstrate struct {
	bdb *bbolt.DB
}

func newBoltSubstrate(bdb *bbolt.DB) (*boltSubstrate, error) {
	err := bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(boltRootBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &boltSubstrate{bdb: bdb}, nil
}

// NewBoltSubstrate wraps an already open Bolt database.
func NewBoltSubstrate(bdb *bbolt.DB) (Substrate, error) {
	return newBoltSubstrate(bdb)
}

func (s *boltSubstrate) bucket(btx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := btx.Bucket(boltRootBucket)
	if b == nil {
		return nil, fmt.Errorf("bolt: missing %s bucket", boltRootBucket)
	}
	return b, nil
}

func boltErr(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

// boltGet distinguishes an empty value from a missing key, which Bucket.Get
// does not do reliably.
func boltGet(b *bbolt.Bucket, key []byte) []byte {
	k, v := b.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil
	}
	return CopyValue(v)
}

func (s *boltSubstrate) Get(key []byte) (value []byte, err error) {
	err = s.bdb.View(func(btx *bbolt.Tx) error {
		b, err := s.bucket(btx)
		if err != nil {
			return err
		}
		value = boltGet(b, key)
		return nil
	})
	return value, boltErr(err)
}

func (s *boltSubstrate) Insert(key, value []byte) (old []byte, err error) {
	err = s.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := s.bucket(btx)
		if err != nil {
			return err
		}
		old = boltGet(b, key)
		return b.Put(key, value)
	})
	return old, boltErr(err)
}

func (s *boltSubstrate) Remove(key []byte) (old []byte, err error) {
	err = s.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := s.bucket(btx)
		if err != nil {
			return err
		}
		old = boltGet(b, key)
		if old == nil {
			return nil
		}
		return b.Delete(key)
	})
	return old, boltErr(err)
}

// FetchAndUpdate runs inside a single Bolt write transaction; Bolt allows one
// writer at a time, so f is called exactly once.
func (s *boltSubstrate) FetchAndUpdate(key []byte, f func(old []byte) ([]byte, error)) (old []byte, err error) {
	err = s.bdb.Update(func(btx *bbolt.Tx) error {
		b, err := s.bucket(btx)
		if err != nil {
			return err
		}
		old = boltGet(b, key)
		updated, err := f(old)
		if err != nil {
			return err
		}
		if updated == nil {
			if old == nil {
				return nil
			}
			return b.Delete(key)
		}
		return b.Put(key, updated)
	})
	if err != nil {
		return nil, boltErr(err)
	}
	return old, nil
}

func (s *boltSubstrate) ScanPrefix(prefix []byte) Iterator {
	return &boltIterator{
		s:      s,
		prefix: append([]byte(nil), prefix...),
		pos:    -1,
	}
}

func (s *boltSubstrate) Close() error {
	return s.bdb.Close()
}

type boltIterator struct {
	s      *boltSubstrate
	prefix []byte
	last   []byte // last key handed out, resume point for the next batch
	keys   [][]byte
	values [][]byte
	pos    int
	done   bool
	err    error
}

func (it *boltIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.pos+1 < len(it.keys) {
		it.pos++
		it.last = it.keys[it.pos]
		return true
	}
	if it.done {
		it.pos = len(it.keys)
		return false
	}
	it.fill()
	if it.err != nil || len(it.keys) == 0 {
		return false
	}
	it.pos = 0
	it.last = it.keys[0]
	return true
}

func (it *boltIterator) fill() {
	it.keys, it.values = it.keys[:0], it.values[:0]
	it.err = boltErr(it.s.bdb.View(func(btx *bbolt.Tx) error {
		b, err := it.s.bucket(btx)
		if err != nil {
			return err
		}
		c := b.Cursor()
		var k, v []byte
		if it.last == nil {
			k, v = c.Seek(it.prefix)
		} else {
			k, v = c.Seek(it.last)
			if k != nil && bytes.Equal(k, it.last) {
				k, v = c.Next()
			}
		}
		for ; k != nil && bytes.HasPrefix(k, it.prefix); k, v = c.Next() {
			if len(it.keys) == boltScanBatch {
				return nil
			}
			it.keys = append(it.keys, CopyValue(k))
			it.values = append(it.values, CopyValue(v))
		}
		it.done = true
		return nil
	}))
}

func (it *boltIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.keys[it.pos]
}

func (it *boltIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *boltIterator) Err() error { return it.err }

func (it *boltIterator) Close() error {
	it.done = true
	it.keys, it.values = nil, nil
	return nil
}
