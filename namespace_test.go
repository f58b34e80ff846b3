package rowdb

import (
	"errors"
	"math"
	"testing"
)

func TestNamespace_Layout(t *testing.T) {
	ns := NewNamespace("student", nil)
	deepEqual(t, string(ns.CounterKey()), "/t/student/next_key/")
	deepEqual(t, string(ns.ItemPrefix()), "/t/student/i/")
	deepEqual(t, ns.ItemKey(256), x("2f742f73747564656e742f692f 0000000000000100"))
	deepEqual(t, ns.KeyEncoding(), BigEndianKeys)

	ns = NewNamespace("student", DecimalKeys)
	deepEqual(t, string(ns.ItemKey(42)), "/t/student/i/42")
	deepEqual(t, ns.Name(), "student")
}

func TestNamespace_ParseItemKey(t *testing.T) {
	for _, enc := range []KeyEncoding{BigEndianKeys, DecimalKeys} {
		t.Run(enc.Name(), func(t *testing.T) {
			ns := NewNamespace("s", enc)
			for _, k := range []uint64{0, 1, 9, 10, 255, 256, math.MaxUint64} {
				deepEqual(t, must(ns.ParseItemKey(ns.ItemKey(k))), k)
			}
			_, err := ns.ParseItemKey([]byte("/t/x/i/1"))
			deepEqual(t, errors.Is(err, errBadKeySuffix), true)
		})
	}
}

func TestDecimalKeys_Strict(t *testing.T) {
	for _, s := range []string{"", "01", "00", "1a", "-1", "+1", "18446744073709551616"} {
		_, err := DecimalKeys.ParseKey([]byte(s))
		if !errors.Is(err, errBadKeySuffix) {
			t.Errorf("** ParseKey(%q) err = %v, wanted errBadKeySuffix", s, err)
		}
	}
	deepEqual(t, must(DecimalKeys.ParseKey([]byte("0"))), uint64(0))
}

func TestBigEndianKeys_Strict(t *testing.T) {
	_, err := BigEndianKeys.ParseKey([]byte{1, 2, 3})
	deepEqual(t, errors.Is(err, errBadKeySuffix), true)
}

func TestKeyEncodingNamed(t *testing.T) {
	deepEqual(t, must(KeyEncodingNamed("decimal")), DecimalKeys)
	deepEqual(t, must(KeyEncodingNamed("bigendian")), BigEndianKeys)
	if _, err := KeyEncodingNamed("nope"); err == nil {
		t.Fatalf("KeyEncodingNamed(nope) succeeded")
	}
}

func TestCounterEncoding(t *testing.T) {
	deepEqual(t, encodeCounter(1), []byte{1, 0, 0, 0, 0, 0, 0, 0})
	deepEqual(t, must(decodeCounter(nil)), uint64(0))
	deepEqual(t, must(decodeCounter(encodeCounter(math.MaxUint64))), uint64(math.MaxUint64))
	_, err := decodeCounter([]byte{})
	var de *DataError
	deepEqual(t, errors.As(err, &de), true)
}

func TestTableNameFromCounterKey(t *testing.T) {
	name, ok := tableNameFromCounterKey([]byte("/t/student/next_key/"))
	deepEqual(t, name, "student")
	deepEqual(t, ok, true)
	_, ok = tableNameFromCounterKey([]byte("/t/next_key/"))
	deepEqual(t, ok, false)
	_, ok = tableNameFromCounterKey([]byte("/t/student/i/0"))
	deepEqual(t, ok, false)
}

func TestNewNamespace_EmptyNamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("NewNamespace(\"\") did not panic")
		}
	}()
	NewNamespace("", nil)
}

func TestCodecNamed(t *testing.T) {
	for _, c := range []Codec{MsgPack, JSON, Proto} {
		deepEqual(t, must(CodecNamed(c.Name())), c)
	}
	if _, err := CodecNamed("xml"); err == nil {
		t.Fatalf("CodecNamed(xml) succeeded")
	}
}
