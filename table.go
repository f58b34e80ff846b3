package rowdb

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Named is implemented by record types that declare which table they live
// in. The method must work on the zero value.
type Named interface {
	TableName() string
}

// Table is a collection of records of type T stored under one name. Tables
// are cheap handles holding no state besides the name; any number of them may
// exist for the same name, and they all see the same rows.
type Table[T any] struct {
	base  *Base
	ns    Namespace
	token tableToken
}

// TableOf returns the table of T, named by T's TableName method.
func TableOf[T Named](b *Base) *Table[T] {
	var zero T
	return NewTable[T](b, zero.TableName())
}

// NewTable returns the table named name, storing records of type T.
func NewTable[T any](b *Base, name string) *Table[T] {
	ns := NewNamespace(name, b.keyEnc)
	b.registerTable(name, reflect.TypeFor[T]())
	return &Table[T]{
		base:  b,
		ns:    ns,
		token: tableToken{b.conn, name},
	}
}

func (tbl *Table[T]) Name() string {
	return tbl.ns.name
}

func (tbl *Table[T]) Namespace() Namespace {
	return tbl.ns
}

func (tbl *Table[T]) Base() *Base {
	return tbl.base
}

func (tbl *Table[T]) sub() Substrate {
	return tbl.base.sub
}

// nextKey allocates a key with one atomic fetch-and-update of the counter.
func (tbl *Table[T]) nextKey() (uint64, error) {
	var ferr error
	old, err := tbl.sub().FetchAndUpdate(tbl.ns.counterKey, func(old []byte) ([]byte, error) {
		n, err := decodeCounter(old)
		if err != nil {
			ferr = decodeErrf(tbl.ns.name, "next_key", err, "reading counter")
			return nil, ferr
		}
		if n == math.MaxUint64 {
			ferr = fmt.Errorf("%s: %w", tbl.ns.name, ErrKeySpaceExhausted)
			return nil, ferr
		}
		ferr = nil
		return encodeCounter(n + 1), nil
	})
	if ferr != nil {
		return 0, ferr
	}
	if err != nil {
		return 0, substrateErr("fetch_and_update", tbl.ns.counterKey, err)
	}
	n, _ := decodeCounter(old)
	return n, nil
}

// Counter returns the key the next Push will get, without allocating it.
func (tbl *Table[T]) Counter() (uint64, error) {
	data, err := tbl.sub().Get(tbl.ns.counterKey)
	if err != nil {
		return 0, substrateErr("get", tbl.ns.counterKey, err)
	}
	tbl.base.ReadCount.Add(1)
	n, err := decodeCounter(data)
	if err != nil {
		return 0, decodeErrf(tbl.ns.name, "next_key", err, "reading counter")
	}
	return n, nil
}

// raiseCounter makes sure a later Push never hands out key k, which the
// caller is about to write directly.
func (tbl *Table[T]) raiseCounter(k uint64) error {
	n, err := tbl.Counter()
	if err != nil {
		return err
	}
	if k < n {
		return nil // the counter never goes down
	}
	want := k + 1
	if k == math.MaxUint64 {
		want = math.MaxUint64
	}
	var ferr error
	_, err = tbl.sub().FetchAndUpdate(tbl.ns.counterKey, func(old []byte) ([]byte, error) {
		n, err := decodeCounter(old)
		if err != nil {
			ferr = decodeErrf(tbl.ns.name, "next_key", err, "reading counter")
			return nil, ferr
		}
		ferr = nil
		if n >= want {
			return old, nil
		}
		return encodeCounter(want), nil
	})
	if ferr != nil {
		return ferr
	}
	if err != nil {
		return substrateErr("fetch_and_update", tbl.ns.counterKey, err)
	}
	if tbl.base.verbose {
		tbl.base.logf("db: COUNTER.RAISE %s => %d", tbl.ns.name, want)
	}
	return nil
}

func (tbl *Table[T]) keyValue(key TableKey[T]) (uint64, error) {
	if key == nil {
		panic("rowdb: nil key")
	}
	return key.Value(tbl)
}

func (tbl *Table[T]) encodeRow(buf []byte, row *T) ([]byte, error) {
	data, err := tbl.base.codec.Encode(buf, row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tbl.ns.name, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (tbl *Table[T]) decodeRow(k uint64, data []byte) (*T, error) {
	row := new(T)
	err := tbl.base.codec.Decode(data, row)
	if err != nil {
		return nil, decodeErrf(tbl.ns.name, strconv.FormatUint(k, 10), dataErrf(data, 0, err, "%s", tbl.base.codec.Name()), "decoding %T", row)
	}
	return row, nil
}

// Get returns the row stored under key, or nil if there is none.
func (tbl *Table[T]) Get(key TableKey[T]) (*T, error) {
	k, err := tbl.keyValue(key)
	if err != nil {
		return nil, err
	}
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw := tbl.ns.AppendItemKey(keyBuf, k)

	data, err := tbl.sub().Get(keyRaw)
	if err != nil {
		return nil, substrateErr("get", keyRaw, err)
	}
	tbl.base.ReadCount.Add(1)
	if data == nil {
		if tbl.base.verbose {
			tbl.base.logf("db: GET.NOTFOUND %s/%d", tbl.ns.name, k)
		}
		return nil, nil
	}
	row, err := tbl.decodeRow(k, data)
	if err != nil {
		return nil, err
	}
	if tbl.base.verbose {
		tbl.base.logf("db: GET %s/%d => %s", tbl.ns.name, k, loggableRow(row))
	}
	return row, nil
}

// Exists reports whether a row is stored under key, without decoding it.
func (tbl *Table[T]) Exists(key TableKey[T]) (bool, error) {
	k, err := tbl.keyValue(key)
	if err != nil {
		return false, err
	}
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw := tbl.ns.AppendItemKey(keyBuf, k)

	data, err := tbl.sub().Get(keyRaw)
	if err != nil {
		return false, substrateErr("get", keyRaw, err)
	}
	tbl.base.ReadCount.Add(1)
	if tbl.base.verbose {
		tbl.base.logf("db: EXISTS %s/%d => %v", tbl.ns.name, k, data != nil)
	}
	return data != nil, nil
}

// Push stores row under a newly allocated key and returns that key.
// Keys are handed out sequentially starting at 0 and are never reused.
func (tbl *Table[T]) Push(row *T) (KeyRef[T], error) {
	if row == nil {
		panic("rowdb: Push of nil row")
	}
	valueBuf := valueBytesPool.Get().([]byte)
	defer func() { releaseValueBytes(valueBuf) }()
	data, err := tbl.encodeRow(valueBuf, row)
	if err != nil {
		return KeyRef[T]{}, err
	}
	valueBuf = data

	k, err := tbl.nextKey()
	if err != nil {
		return KeyRef[T]{}, err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw := tbl.ns.AppendItemKey(keyBuf, k)
	_, err = tbl.sub().Insert(keyRaw, data)
	if err != nil {
		return KeyRef[T]{}, substrateErr("insert", keyRaw, err)
	}
	if tbl.base.verbose {
		tbl.base.logf("db: PUSH %s/%d => %s", tbl.ns.name, k, loggableRow(row))
	}
	tbl.base.notify(tbl.ns.name, OpPush, k, row)
	return KeyRef[T]{value: k, token: tbl.token}, nil
}

// Set stores row under key, replacing whatever was there. The key does not
// have to come from Push; if it lies beyond the counter, the counter is
// raised so that Push never hands it out. Setting key math.MaxUint64 thus
// exhausts the table: every later Push fails with ErrKeySpaceExhausted.
func (tbl *Table[T]) Set(key TableKey[T], row *T) error {
	if row == nil {
		panic("rowdb: Set of nil row, use Delete")
	}
	k, err := tbl.keyValue(key)
	if err != nil {
		return err
	}
	valueBuf := valueBytesPool.Get().([]byte)
	defer func() { releaseValueBytes(valueBuf) }()
	data, err := tbl.encodeRow(valueBuf, row)
	if err != nil {
		return err
	}
	valueBuf = data

	err = tbl.raiseCounter(k)
	if err != nil {
		return err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw := tbl.ns.AppendItemKey(keyBuf, k)
	_, err = tbl.sub().Insert(keyRaw, data)
	if err != nil {
		return substrateErr("insert", keyRaw, err)
	}
	if tbl.base.verbose {
		tbl.base.logf("db: PUT %s/%d => %s", tbl.ns.name, k, loggableRow(row))
	}
	tbl.base.notify(tbl.ns.name, OpPut, k, row)
	return nil
}

// Delete removes the row stored under key. Deleting a missing row is a no-op.
func (tbl *Table[T]) Delete(key TableKey[T]) error {
	_, _, err := tbl.remove(key, false)
	return err
}

// Remove deletes the row stored under key and returns it (nil if there was
// none).
func (tbl *Table[T]) Remove(key TableKey[T]) (*T, error) {
	row, _, err := tbl.remove(key, true)
	return row, err
}

func (tbl *Table[T]) remove(key TableKey[T], decode bool) (*T, bool, error) {
	k, err := tbl.keyValue(key)
	if err != nil {
		return nil, false, err
	}
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw := tbl.ns.AppendItemKey(keyBuf, k)

	old, err := tbl.sub().Remove(keyRaw)
	if err != nil {
		return nil, false, substrateErr("remove", keyRaw, err)
	}
	if old == nil {
		if tbl.base.verbose {
			tbl.base.logf("db: DELETE.NOOP %s/%d", tbl.ns.name, k)
		}
		return nil, false, nil
	}
	if tbl.base.verbose {
		tbl.base.logf("db: DELETE %s/%d", tbl.ns.name, k)
	}
	tbl.base.notify(tbl.ns.name, OpDelete, k, nil)
	if !decode {
		return nil, true, nil
	}
	row, err := tbl.decodeRow(k, old)
	return row, true, err
}

// Update reads the row under key and passes it to op (nil if absent). If op
// returns a row, it is stored under key; if op returns nil, the row is
// deleted. This covers insert-if-absent, modify and delete in one call.
//
// The read and the write happen in one atomic step of the substrate, so
// concurrent updates of the same row never lose each other's changes. For the
// same reason op may be called more than once if the substrate retries, and
// must not have side effects other than on the row it is given.
//
// When op returns a row, Update raises the counter past key like Set does.
// The row is written first and the counter raised in a second step. Deleting
// or leaving a row absent never touches the counter.
func (tbl *Table[T]) Update(key TableKey[T], op func(row *T) *T) error {
	k, err := tbl.keyValue(key)
	if err != nil {
		return err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	keyRaw := tbl.ns.AppendItemKey(keyBuf, k)

	var result *T
	var ferr error
	old, err := tbl.sub().FetchAndUpdate(keyRaw, func(old []byte) ([]byte, error) {
		ferr, result = nil, nil
		var cur *T
		if old != nil {
			cur, ferr = tbl.decodeRow(k, old)
			if ferr != nil {
				return nil, ferr
			}
		}
		result = op(cur)
		if result == nil {
			return nil, nil
		}
		data, err := tbl.encodeRow(nil, result)
		if err != nil {
			ferr = err
			return nil, ferr
		}
		return data, nil
	})
	if ferr != nil {
		return ferr
	}
	if err != nil {
		return substrateErr("fetch_and_update", keyRaw, err)
	}

	switch {
	case result != nil:
		err = tbl.raiseCounter(k)
		if err != nil {
			return err
		}
		if tbl.base.verbose {
			tbl.base.logf("db: UPDATE %s/%d => %s", tbl.ns.name, k, loggableRow(result))
		}
		tbl.base.notify(tbl.ns.name, OpPut, k, result)
	case old != nil:
		if tbl.base.verbose {
			tbl.base.logf("db: UPDATE.DELETE %s/%d", tbl.ns.name, k)
		}
		tbl.base.notify(tbl.ns.name, OpDelete, k, nil)
	default:
		if tbl.base.verbose {
			tbl.base.logf("db: UPDATE.NOOP %s/%d", tbl.ns.name, k)
		}
	}
	return nil
}

// Keys returns a cursor over the keys of all rows, in substrate order (which
// is numeric order with BigEndianKeys). Each call starts a fresh scan.
func (tbl *Table[T]) Keys() *Cursor[T] {
	return tbl.newCursor(false)
}

// Iterate returns a cursor over all rows and their keys, in the same order as
// Keys. Rows are decoded from the scan itself.
func (tbl *Table[T]) Iterate() *Cursor[T] {
	return tbl.newCursor(true)
}

// Len counts the rows of the table. It scans the whole table.
func (tbl *Table[T]) Len() (int, error) {
	c := tbl.Keys()
	defer c.Close()
	var n int
	for c.Next() {
		n++
	}
	return n, c.Err()
}
