package rowdb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKeySpaceExhausted is returned by Push once a table's counter reaches
// math.MaxUint64.
var ErrKeySpaceExhausted = errors.New("key space exhausted")

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// DecodeError means bytes read from the substrate could not be decoded:
// a row that doesn't match the table's record type (two record types sharing
// a table name) or on-disk corruption. It is never returned for missing rows.
type DecodeError struct {
	Table string
	Path  string // slot within the table, e.g. "3" or "next_key"
	Msg   string
	Err   error
}

func decodeErrf(table, path string, err error, format string, args ...any) error {
	return &DecodeError{table, path, fmt.Sprintf(format, args...), err}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Path != "" {
		buf.WriteByte('/')
		buf.WriteString(e.Path)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// SubstrateError wraps a failure reported by the underlying store.
type SubstrateError struct {
	Op  string
	Key []byte
	Err error
}

func substrateErr(op string, key []byte, err error) error {
	if err == nil {
		return nil
	}
	return &SubstrateError{op, append([]byte(nil), key...), err}
}

func (e *SubstrateError) Unwrap() error {
	return e.Err
}

func (e *SubstrateError) Error() string {
	return fmt.Sprintf("rowdb: %s %q: %v", e.Op, e.Key, e.Err)
}

// OpenError is returned when a substrate cannot be opened or created.
type OpenError struct {
	Backend string
	Path    string
	Err     error
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("rowdb: opening %s %s: %v", e.Backend, e.Path, e.Err)
}

// MismatchError is returned when a key handle bound to one table is used
// with another.
type MismatchError struct {
	KeyTable   string
	UsedTable  string
	SameNameDB bool // same table name, but a different database connection
}

func (e *MismatchError) Error() string {
	if e.SameNameDB {
		return fmt.Sprintf("rowdb: key from table %s of another database used with table %s", e.KeyTable, e.UsedTable)
	}
	return fmt.Sprintf("rowdb: key from table %s used with table %s", e.KeyTable, e.UsedTable)
}
