package rowdb

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "oops")
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		s := err.Error()
		if !strings.Contains(s, "oops") || !strings.Contains(s, "inner") || !strings.Contains(s, "(2)") {
			t.Fatalf("err.Error() = %q, wanted message with oops/inner/(2)", s)
		}
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		err := dataErrf(data, 0, nil, "oops")
		s := err.Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
	})
}

func TestDecodeError(t *testing.T) {
	inner := errors.New("inner")
	err := decodeErrf("student", "3", inner, "decoding %s", "row")
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is(err, inner) = false, wanted true")
	}
	deepEqual(t, err.Error(), "student/3: decoding row: inner")
	deepEqual(t, (&DecodeError{Table: "T"}).Error(), "T")
}

func TestSubstrateError(t *testing.T) {
	deepEqual(t, substrateErr("get", []byte("k"), nil), nil)

	key := []byte("k")
	err := substrateErr("get", key, ErrClosed)
	key[0] = 'z'
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("errors.Is(err, ErrClosed) = false, wanted true")
	}
	deepEqual(t, err.Error(), `rowdb: get "k": substrate closed`)
}

func TestOpenAndMismatchErrors(t *testing.T) {
	err := &OpenError{"bolt", "/x.db", ErrClosed}
	deepEqual(t, err.Error(), "rowdb: opening bolt /x.db: substrate closed")
	deepEqual(t, errors.Is(err, ErrClosed), true)

	deepEqual(t, (&MismatchError{KeyTable: "a", UsedTable: "b"}).Error(), "rowdb: key from table a used with table b")
	deepEqual(t, (&MismatchError{KeyTable: "a", UsedTable: "a", SameNameDB: true}).Error(), "rowdb: key from table a of another database used with table a")
}
