package rowdb

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

type memSubstrate struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	closed bool
}

type memItem struct {
	key   []byte
	value []byte
}

func (it memItem) Less(than btree.Item) bool {
	return bytes.Compare(it.key, than.(memItem).key) < 0
}

// NewMemSubstrate returns a transient in-memory Substrate backed by a B-tree.
// Intended for tests and for caches that don't need durability.
func NewMemSubstrate() Substrate {
	return &memSubstrate{tree: btree.New(16)}
}

func (s *memSubstrate) getLocked(key []byte) []byte {
	item := s.tree.Get(memItem{key: key})
	if item == nil {
		return nil
	}
	return item.(memItem).value
}

func (s *memSubstrate) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	v := s.getLocked(key)
	if v == nil {
		return nil, nil
	}
	return CopyValue(v), nil
}

func (s *memSubstrate) Insert(key, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	old := s.tree.ReplaceOrInsert(memItem{key: CopyValue(key), value: CopyValue(value)})
	if old == nil {
		return nil, nil
	}
	return old.(memItem).value, nil
}

func (s *memSubstrate) Remove(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	old := s.tree.Delete(memItem{key: key})
	if old == nil {
		return nil, nil
	}
	return old.(memItem).value, nil
}

func (s *memSubstrate) FetchAndUpdate(key []byte, f func(old []byte) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	old := s.getLocked(key)
	var arg []byte
	if old != nil {
		arg = CopyValue(old)
	}
	updated, err := f(arg)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		s.tree.Delete(memItem{key: key})
	} else {
		s.tree.ReplaceOrInsert(memItem{key: CopyValue(key), value: CopyValue(updated)})
	}
	return old, nil
}

// ScanPrefix collects the matching pairs up front, so the iterator observes a
// consistent snapshot and holds no lock while the caller consumes it.
func (s *memSubstrate) ScanPrefix(prefix []byte) Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrIterator(ErrClosed)
	}
	var keys, values [][]byte
	s.tree.AscendGreaterOrEqual(memItem{key: prefix}, func(item btree.Item) bool {
		mi := item.(memItem)
		if !bytes.HasPrefix(mi.key, prefix) {
			return false
		}
		keys = append(keys, mi.key)
		values = append(values, mi.value)
		return true
	})
	return SliceIterator(keys, values)
}

func (s *memSubstrate) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tree = btree.New(16)
	return nil
}
