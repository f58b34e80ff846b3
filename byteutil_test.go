package rowdb

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestBytesBuilder_Basics(t *testing.T) {
	var bb bytesBuilder
	off := bb.Grow(3)
	copy(bb.Buf[off:], []byte{1, 2, 3})
	_ = bb.WriteByte(4)
	bb.AppendFixedUint64(0x0102030405060708)

	want := []byte{1, 2, 3, 4}
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], 0x0102030405060708)
	want = append(want, u64[:]...)

	if !reflect.DeepEqual(bb.Buf, want) {
		t.Fatalf("bb.Buf = %x, wanted %x", bb.Buf, want)
	}

	_, _ = bb.Write([]byte{9, 8})
	if !reflect.DeepEqual(bb.Buf, append(want, 9, 8)) {
		t.Fatalf("after Write: bb.Buf = %x, wanted %x0908", bb.Buf, want)
	}
}

func TestByteUtil_AppendRaw(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	buf := appendRaw(nil, src)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw = %x, wanted %x", buf, src)
	}

	buf = appendRaw(make([]byte, 0, 2), src)
	if !reflect.DeepEqual(buf, src) || cap(buf) < 3 {
		t.Fatalf("appendRaw(small) = %x cap %d, wanted %x", buf, cap(buf), src)
	}
}

func TestPrefixEnd(t *testing.T) {
	deepEqual(t, PrefixEnd([]byte("/t/a/")), []byte("/t/a0"))
	deepEqual(t, PrefixEnd([]byte{0x01, 0xFF}), []byte{0x02})
	if got := PrefixEnd([]byte{0xFF, 0xFF}); got != nil {
		t.Fatalf("PrefixEnd(ffff) = %x, wanted nil", got)
	}
	if got := PrefixEnd(nil); got != nil {
		t.Fatalf("PrefixEnd(nil) = %x, wanted nil", got)
	}
}

func TestCopyValue(t *testing.T) {
	v := CopyValue([]byte{})
	if v == nil || len(v) != 0 {
		t.Fatalf("CopyValue(empty) = %#v, wanted non-nil empty", v)
	}
	src := []byte{1, 2}
	v = CopyValue(src)
	src[0] = 9
	deepEqual(t, v, []byte{1, 2})
}
