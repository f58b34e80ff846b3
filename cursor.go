package rowdb

import (
	"iter"
	"strconv"
)

// Cursor walks the rows of a table in substrate order. Call Next before
// reading the first row, check Err once Next returns false, and Close the
// cursor when done (or let Next run to the end, which closes it too).
//
// Rows written during the scan may or may not be observed, depending on the
// substrate; rows that existed for the whole scan are seen exactly once.
type Cursor[T any] struct {
	tbl    *Table[T]
	it     Iterator
	decode bool

	key     uint64
	row     *T
	decoded bool
	err     error
	closed  bool
}

func (tbl *Table[T]) newCursor(decode bool) *Cursor[T] {
	if tbl.base.verbose {
		tbl.base.logf("db: SCAN %s", tbl.ns.name)
	}
	return &Cursor[T]{
		tbl:    tbl,
		it:     tbl.sub().ScanPrefix(tbl.ns.itemPrefix),
		decode: decode,
	}
}

func (c *Cursor[T]) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	c.row, c.decoded = nil, false
	if !c.it.Next() {
		if err := c.it.Err(); err != nil {
			c.err = substrateErr("scan", c.tbl.ns.itemPrefix, err)
		}
		c.Close()
		return false
	}
	c.tbl.base.ReadCount.Add(1)

	raw := c.it.Key()
	k, err := c.tbl.ns.ParseItemKey(raw)
	if err != nil {
		c.err = decodeErrf(c.tbl.ns.name, string(raw[min(len(raw), len(c.tbl.ns.itemPrefix)):]), err, "invalid item key")
		c.Close()
		return false
	}
	c.key = k

	if c.decode {
		c.decodeRow()
		if c.err != nil {
			c.Close()
			return false
		}
	}
	return true
}

func (c *Cursor[T]) decodeRow() {
	if c.decoded {
		return
	}
	c.decoded = true
	row, err := c.tbl.decodeRow(c.key, c.it.Value())
	if err != nil {
		c.err = err
		return
	}
	c.row = row
}

// Key returns the key of the current row, bound to the cursor's table.
func (c *Cursor[T]) Key() KeyRef[T] {
	return KeyRef[T]{value: c.key, token: c.tbl.token}
}

// RawKey returns the integer key of the current row.
func (c *Cursor[T]) RawKey() uint64 {
	return c.key
}

// Row returns the current row. On a cursor obtained from Keys the row is
// decoded on first access; if that fails, Row returns nil and the error is
// reported by Err.
func (c *Cursor[T]) Row() *T {
	if !c.decoded && !c.closed {
		c.decodeRow()
	}
	return c.row
}

func (c *Cursor[T]) Err() error {
	return c.err
}

func (c *Cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.it.Close()
}

// Keys adapts the cursor for use in a range loop over keys. As with Rows,
// check Err after the loop.
func (c *Cursor[T]) Keys() iter.Seq[KeyRef[T]] {
	return func(yield func(KeyRef[T]) bool) {
		defer c.Close()
		for c.Next() {
			if !yield(c.Key()) {
				return
			}
		}
	}
}

// Rows adapts the cursor for use in a range loop over keys and rows.
// A row that fails to decode ends the loop early without any sign of it;
// keep the cursor and check Err after the loop.
func (c *Cursor[T]) Rows() iter.Seq2[KeyRef[T], *T] {
	return func(yield func(KeyRef[T], *T) bool) {
		defer c.Close()
		for c.Next() {
			row := c.Row()
			if c.err != nil {
				return
			}
			if !yield(c.Key(), row) {
				return
			}
		}
	}
}

func (c *Cursor[T]) String() string {
	return c.tbl.ns.name + "@" + strconv.FormatUint(c.key, 10)
}

// All drains the cursor and returns every row.
func All[T any](c *Cursor[T]) ([]*T, error) {
	defer c.Close()
	var result []*T
	for c.Next() {
		row := c.Row()
		if c.err != nil {
			break
		}
		result = append(result, row)
	}
	return result, c.Err()
}

// AllKeys drains the cursor and returns every key.
func AllKeys[T any](c *Cursor[T]) ([]KeyRef[T], error) {
	defer c.Close()
	var result []KeyRef[T]
	for c.Next() {
		result = append(result, c.Key())
	}
	return result, c.Err()
}
