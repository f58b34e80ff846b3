package rowdb

import (
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// TableKey is implemented by KeyRef and Key. Value returns the raw integer key
// after checking that the handle may be used with tbl.
type TableKey[T any] interface {
	Value(tbl *Table[T]) (uint64, error)
}

// tableToken identifies a table's storage: two tables share a token exactly
// when they alias the same rows.
type tableToken struct {
	c    *conn
	name string
}

// KeyRef is a key bound to the table it was produced by. Using it with a table
// that stores its rows elsewhere fails with *MismatchError.
type KeyRef[T any] struct {
	value uint64
	token tableToken
}

var _ TableKey[struct{}] = KeyRef[struct{}]{}

func (k KeyRef[T]) Value(tbl *Table[T]) (uint64, error) {
	if k.token != tbl.token {
		return 0, &MismatchError{
			KeyTable:   k.token.name,
			UsedTable:  tbl.token.name,
			SameNameDB: k.token.name == tbl.token.name,
		}
	}
	return k.value, nil
}

// Owned detaches the key from its table, e.g. to store it inside another row.
func (k KeyRef[T]) Owned() Key[T] {
	return Key[T]{value: k.value}
}

// Table returns the name of the table the key belongs to.
func (k KeyRef[T]) Table() string {
	return k.token.name
}

func (k KeyRef[T]) String() string {
	return k.token.name + "/" + strconv.FormatUint(k.value, 10)
}

// Key is a detached key of a row of type T. It is safe to persist: it encodes
// as a plain integer in both MsgPack and JSON.
type Key[T any] struct {
	value uint64
}

var (
	_ TableKey[struct{}]     = Key[struct{}]{}
	_ msgpack.CustomEncoder = Key[struct{}]{}
	_ msgpack.CustomDecoder = (*Key[struct{}])(nil)
)

// KeyOf makes a detached key from a raw integer.
func KeyOf[T any](v uint64) Key[T] {
	return Key[T]{value: v}
}

func (k Key[T]) Value(tbl *Table[T]) (uint64, error) {
	return k.value, nil
}

// Raw returns the integer key without any table context.
func (k Key[T]) Raw() uint64 {
	return k.value
}

// Ref binds the key to tbl.
func (k Key[T]) Ref(tbl *Table[T]) KeyRef[T] {
	return KeyRef[T]{value: k.value, token: tbl.token}
}

func (k Key[T]) String() string {
	return strconv.FormatUint(k.value, 10)
}

func (k Key[T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeUint(k.value)
}

func (k *Key[T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	k.value = v
	return nil
}

func (k Key[T]) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, k.value, 10), nil
}

func (k *Key[T]) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return err
	}
	k.value = v
	return nil
}
