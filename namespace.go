package rowdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

const (
	tablePathPrefix   = "/t/"
	counterPathSuffix = "/next_key/"
	itemPathSuffix    = "/i/"
	counterSize       = 8
)

// KeyEncoding turns integer keys into the suffix appended to a table's item
// prefix, and back.
type KeyEncoding interface {
	Name() string
	AppendKey(buf []byte, key uint64) []byte
	ParseKey(suffix []byte) (uint64, error)
}

var (
	// BigEndianKeys encodes keys as 8 fixed-width big-endian bytes, so that
	// a prefix scan returns rows in numeric key order.
	BigEndianKeys KeyEncoding = bigEndianKeys{}

	// DecimalKeys encodes keys as ASCII decimal digits. This is the legacy
	// layout; scans return "10" before "2".
	DecimalKeys KeyEncoding = decimalKeys{}

	defaultKeyEncoding = BigEndianKeys
)

var errBadKeySuffix = errors.New("malformed key suffix")

// KeyEncodingNamed looks up one of the built-in key encodings by name.
func KeyEncodingNamed(name string) (KeyEncoding, error) {
	for _, enc := range []KeyEncoding{BigEndianKeys, DecimalKeys} {
		if enc.Name() == name {
			return enc, nil
		}
	}
	return nil, fmt.Errorf("unknown key encoding %q", name)
}

type bigEndianKeys struct{}

func (bigEndianKeys) Name() string { return "bigendian" }

func (bigEndianKeys) AppendKey(buf []byte, key uint64) []byte {
	bb := bytesBuilder{buf}
	bb.AppendFixedUint64(key)
	return bb.Buf
}

func (bigEndianKeys) ParseKey(suffix []byte) (uint64, error) {
	if len(suffix) != 8 {
		return 0, fmt.Errorf("%w: %d bytes, wanted 8", errBadKeySuffix, len(suffix))
	}
	return binary.BigEndian.Uint64(suffix), nil
}

type decimalKeys struct{}

func (decimalKeys) Name() string { return "decimal" }

func (decimalKeys) AppendKey(buf []byte, key uint64) []byte {
	return strconv.AppendUint(buf, key, 10)
}

func (decimalKeys) ParseKey(suffix []byte) (uint64, error) {
	if len(suffix) == 0 || (len(suffix) > 1 && suffix[0] == '0') {
		return 0, fmt.Errorf("%w: %q", errBadKeySuffix, suffix)
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", errBadKeySuffix, suffix)
		}
	}
	v, err := strconv.ParseUint(string(suffix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errBadKeySuffix, err)
	}
	return v, nil
}

// Namespace is the set of substrate keys owned by one table name: a counter
// slot "/t/<name>/next_key/" and an item region "/t/<name>/i/<key>".
// It is derived purely from the name; nothing is provisioned in the store.
type Namespace struct {
	name       string
	counterKey []byte
	itemPrefix []byte
	keyEnc     KeyEncoding
}

// NewNamespace panics on an empty name. Names are used verbatim, so a name
// like "a/i/x" falls inside the item region of table "a"; don't use those.
func NewNamespace(name string, keyEnc KeyEncoding) Namespace {
	if name == "" {
		panic("rowdb: empty table name")
	}
	if keyEnc == nil {
		keyEnc = defaultKeyEncoding
	}
	return Namespace{
		name:       name,
		counterKey: []byte(tablePathPrefix + name + counterPathSuffix),
		itemPrefix: []byte(tablePathPrefix + name + itemPathSuffix),
		keyEnc:     keyEnc,
	}
}

func (ns Namespace) Name() string             { return ns.name }
func (ns Namespace) KeyEncoding() KeyEncoding { return ns.keyEnc }

// CounterKey returns the substrate key of the table's next-key counter.
func (ns Namespace) CounterKey() []byte {
	return ns.counterKey
}

// ItemPrefix returns the common prefix of all item keys of the table.
func (ns Namespace) ItemPrefix() []byte {
	return ns.itemPrefix
}

// AppendItemKey appends the substrate key of the item with the given key.
func (ns Namespace) AppendItemKey(buf []byte, key uint64) []byte {
	buf = appendRaw(buf, ns.itemPrefix)
	return ns.keyEnc.AppendKey(buf, key)
}

func (ns Namespace) ItemKey(key uint64) []byte {
	return ns.AppendItemKey(make([]byte, 0, len(ns.itemPrefix)+20), key)
}

// ParseItemKey extracts the integer key from a full substrate item key.
func (ns Namespace) ParseItemKey(raw []byte) (uint64, error) {
	if len(raw) < len(ns.itemPrefix) || string(raw[:len(ns.itemPrefix)]) != string(ns.itemPrefix) {
		return 0, fmt.Errorf("%w: %q is outside of %q", errBadKeySuffix, raw, ns.itemPrefix)
	}
	return ns.keyEnc.ParseKey(raw[len(ns.itemPrefix):])
}

// encodeCounter uses the same 8-byte little-endian layout as the original
// store, so existing counters keep working.
func encodeCounter(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, counterSize), v)
}

func decodeCounter(data []byte) (uint64, error) {
	if data == nil {
		return 0, nil
	}
	if len(data) != counterSize {
		return 0, dataErrf(data, 0, nil, "invalid counter: %d bytes, wanted %d", len(data), counterSize)
	}
	return binary.LittleEndian.Uint64(data), nil
}

// tableNameFromCounterKey returns the table name if raw is a counter slot key.
func tableNameFromCounterKey(raw []byte) (string, bool) {
	s := string(raw)
	if len(s) <= len(tablePathPrefix)+len(counterPathSuffix) {
		return "", false
	}
	if s[:len(tablePathPrefix)] != tablePathPrefix || s[len(s)-len(counterPathSuffix):] != counterPathSuffix {
		return "", false
	}
	return s[len(tablePathPrefix) : len(s)-len(counterPathSuffix)], true
}
