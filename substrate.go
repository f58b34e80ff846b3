package rowdb

import "errors"

// ErrClosed is returned by substrates that have already been closed.
var ErrClosed = errors.New("substrate closed")

// Substrate is an ordered key-value store keyed by raw byte strings
// (Bolt, Pebble, Badger, in-memory B-tree, etc.). Tables are built entirely
// from these primitives.
//
// A nil value always means “absent”. Backends must report a present key with
// a non-nil (possibly empty) value. Returned slices are owned by the caller.
type Substrate interface {
	// Get returns the value stored under key, or nil if there is none.
	Get(key []byte) ([]byte, error)

	// Insert stores value under key and returns the previous value, if any.
	Insert(key, value []byte) ([]byte, error)

	// Remove deletes key and returns the previous value, if any.
	Remove(key []byte) ([]byte, error)

	// FetchAndUpdate atomically replaces the value under key with f(old),
	// where old is nil if the key is absent. Returning a nil value from f
	// removes the key. Returns the value that was stored before the update.
	//
	// Backends that retry on contention may call f more than once. If f
	// returns an error, nothing is written and the error is returned as is.
	FetchAndUpdate(key []byte, f func(old []byte) ([]byte, error)) ([]byte, error)

	// ScanPrefix returns an iterator over all pairs whose key starts with
	// prefix, in ascending key order. The iterator must be closed.
	ScanPrefix(prefix []byte) Iterator

	// Close releases the underlying store.
	Close() error
}

// Iterator walks the result of Substrate.ScanPrefix.
type Iterator interface {
	// Next advances to the next pair; it must be called before the first one.
	Next() bool
	// Key returns the current key. Only valid until the next call to Next.
	Key() []byte
	// Value returns the current value. Only valid until the next call to Next.
	Value() []byte
	// Err returns the error that stopped the iteration, if any.
	Err() error
	Close() error
}

// ErrIterator returns an Iterator that yields nothing and reports err.
func ErrIterator(err error) Iterator {
	return errIterator{err}
}

type errIterator struct {
	err error
}

func (it errIterator) Next() bool    { return false }
func (it errIterator) Key() []byte   { return nil }
func (it errIterator) Value() []byte { return nil }
func (it errIterator) Err() error    { return it.err }
func (it errIterator) Close() error  { return nil }

// SliceIterator returns an Iterator over pre-collected pairs. Backends whose
// native cursors cannot outlive a transaction collect into it.
func SliceIterator(keys, values [][]byte) Iterator {
	if len(keys) != len(values) {
		panic("SliceIterator: keys and values differ in length")
	}
	return &sliceIterator{keys: keys, values: values, pos: -1}
}

type sliceIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		it.pos = len(it.keys)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.keys[it.pos]
}

func (it *sliceIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *sliceIterator) Err() error   { return nil }
func (it *sliceIterator) Close() error { return nil }

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is none (prefix is empty or all 0xFF).
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// CopyValue returns a caller-owned copy of a present value, keeping it non-nil
// even when empty.
func CopyValue(v []byte) []byte {
	return append(make([]byte, 0, len(v)), v...)
}
