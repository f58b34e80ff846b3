// Package rowdbtest checks that a Substrate implementation behaves the way
// rowdb tables rely on.
package rowdbtest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/rowdb"
)

// OpenFunc returns a fresh, empty substrate. The suite closes it.
type OpenFunc func(t *testing.T) rowdb.Substrate

// RunSubstrateTests runs the conformance suite against substrates made by open.
func RunSubstrateTests(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s rowdb.Substrate)
	}{
		{"GetMissing", testGetMissing},
		{"InsertReturnsPrevious", testInsertReturnsPrevious},
		{"EmptyValueIsPresent", testEmptyValueIsPresent},
		{"RemoveReturnsPrevious", testRemoveReturnsPrevious},
		{"ReturnedSlicesAreOwned", testReturnedSlicesAreOwned},
		{"FetchAndUpdate", testFetchAndUpdate},
		{"FetchAndUpdateError", testFetchAndUpdateError},
		{"FetchAndUpdateConcurrent", testFetchAndUpdateConcurrent},
		{"ScanPrefixOrder", testScanPrefixOrder},
		{"ScanPrefixBounds", testScanPrefixBounds},
		{"ScanManyPairs", testScanManyPairs},
		{"WriteDuringScan", testWriteDuringScan},
		{"Table", testTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}

	t.Run("Closed", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())
		_, err := s.Get([]byte("k"))
		assert.ErrorIs(t, err, rowdb.ErrClosed)
		_, err = s.Insert([]byte("k"), []byte("v"))
		assert.ErrorIs(t, err, rowdb.ErrClosed)
		it := s.ScanPrefix(nil)
		assert.False(t, it.Next())
		assert.ErrorIs(t, it.Err(), rowdb.ErrClosed)
		it.Close()
	})
}

func testGetMissing(t *testing.T, s rowdb.Substrate) {
	v, err := s.Get([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = s.Remove([]byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func testInsertReturnsPrevious(t *testing.T, s rowdb.Substrate) {
	old, err := s.Insert([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	assert.Nil(t, old)

	old, err = s.Insert([]byte("k"), []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), old)

	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func testEmptyValueIsPresent(t *testing.T, s rowdb.Substrate) {
	_, err := s.Insert([]byte("k"), []byte{})
	require.NoError(t, err)

	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Len(t, v, 0)

	var seen []byte
	_, err = s.FetchAndUpdate([]byte("k"), func(old []byte) ([]byte, error) {
		seen = old
		return old, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, seen)

	it := s.ScanPrefix([]byte("k"))
	defer it.Close()
	require.True(t, it.Next())
	assert.NotNil(t, it.Value())
}

func testRemoveReturnsPrevious(t *testing.T, s rowdb.Substrate) {
	_, err := s.Insert([]byte("k"), []byte("v"))
	require.NoError(t, err)

	old, err := s.Remove([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), old)

	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func testReturnedSlicesAreOwned(t *testing.T, s rowdb.Substrate) {
	key, value := []byte("k"), []byte("v")
	_, err := s.Insert(key, value)
	require.NoError(t, err)
	key[0], value[0] = 'x', 'x'

	v, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
	v[0] = 'y'

	v, err = s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func testFetchAndUpdate(t *testing.T, s rowdb.Substrate) {
	k := []byte("counter")

	old, err := s.FetchAndUpdate(k, func(old []byte) ([]byte, error) {
		assert.Nil(t, old)
		return []byte("1"), nil
	})
	require.NoError(t, err)
	assert.Nil(t, old)

	old, err = s.FetchAndUpdate(k, func(old []byte) ([]byte, error) {
		assert.Equal(t, []byte("1"), old)
		return []byte("2"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), old)

	// nil removes
	old, err = s.FetchAndUpdate(k, func(old []byte) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), old)
	v, err := s.Get(k)
	require.NoError(t, err)
	assert.Nil(t, v)

	// removing an absent key is fine
	old, err = s.FetchAndUpdate(k, func(old []byte) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, old)
}

func testFetchAndUpdateError(t *testing.T, s rowdb.Substrate) {
	k := []byte("k")
	_, err := s.Insert(k, []byte("v"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.FetchAndUpdate(k, func(old []byte) ([]byte, error) {
		return []byte("changed"), boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := s.Get(k)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func testFetchAndUpdateConcurrent(t *testing.T, s rowdb.Substrate) {
	const workers, perWorker = 8, 50
	k := []byte("counter")

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				old, err := s.FetchAndUpdate(k, func(old []byte) ([]byte, error) {
					return binary.LittleEndian.AppendUint64(nil, decodeCount(old)+1), nil
				})
				if !assert.NoError(t, err) {
					return
				}
				n := decodeCount(old)
				mu.Lock()
				assert.False(t, seen[n], "value %d observed twice", n)
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	v, err := s.Get(k)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), decodeCount(v))
	assert.Len(t, seen, workers*perWorker)
}

func decodeCount(v []byte) uint64 {
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func testScanPrefixOrder(t *testing.T, s rowdb.Substrate) {
	for _, k := range []string{"p/10", "p/2", "p/1", "p/\xff", "p/\x00"} {
		_, err := s.Insert([]byte(k), []byte("v"+k))
		require.NoError(t, err)
	}
	keys, values := scanAll(t, s, []byte("p/"))
	assert.Equal(t, []string{"p/\x00", "p/1", "p/10", "p/2", "p/\xff"}, keys)
	assert.Equal(t, "vp/\x00", values[0])
}

func testScanPrefixBounds(t *testing.T, s rowdb.Substrate) {
	for _, k := range []string{"a", "a/", "a/x", "a0", "a/\xff\xff", "b", "`"} {
		_, err := s.Insert([]byte(k), []byte(k))
		require.NoError(t, err)
	}
	keys, _ := scanAll(t, s, []byte("a/"))
	assert.Equal(t, []string{"a/", "a/x", "a/\xff\xff"}, keys)

	keys, _ = scanAll(t, s, []byte("zzz"))
	assert.Empty(t, keys)

	keys, _ = scanAll(t, s, []byte("\xff"))
	assert.Empty(t, keys)

	keys, _ = scanAll(t, s, nil)
	assert.Len(t, keys, 7)
}

func testScanManyPairs(t *testing.T, s rowdb.Substrate) {
	const n = 1000
	for i := range n {
		_, err := s.Insert(fmt.Appendf(nil, "m/%05d", i), fmt.Appendf(nil, "%d", i))
		require.NoError(t, err)
	}
	keys, values := scanAll(t, s, []byte("m/"))
	require.Len(t, keys, n)
	for i := range n {
		assert.Equal(t, fmt.Sprintf("m/%05d", i), keys[i])
		assert.Equal(t, fmt.Sprintf("%d", i), values[i])
	}
}

func testWriteDuringScan(t *testing.T, s rowdb.Substrate) {
	const n = 600
	for i := range n {
		_, err := s.Insert(fmt.Appendf(nil, "w/%05d", i), []byte("old"))
		require.NoError(t, err)
	}

	it := s.ScanPrefix([]byte("w/"))
	defer it.Close()
	var count int
	for it.Next() {
		count++
		_, err := s.Insert(it.Key(), []byte("new"))
		require.NoError(t, err)
		_, err = s.Remove(append(bytes.Clone(it.Key()), 'x'))
		require.NoError(t, err)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, n, count)

	_, values := scanAll(t, s, []byte("w/"))
	for _, v := range values {
		require.Equal(t, "new", v)
	}
}

type student struct {
	Name  string `msgpack:"n"`
	Value int    `msgpack:"v"`
}

func testTable(t *testing.T, s rowdb.Substrate) {
	db := rowdb.OpenSubstrate(s, rowdb.Options{IsTesting: true, Logf: t.Logf})
	students := rowdb.NewTable[student](db, "student")

	bob, err := students.Push(&student{Name: "bob"})
	require.NoError(t, err)
	ann, err := students.Push(&student{Name: "ann", Value: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bob.Owned().Raw())
	assert.Equal(t, uint64(1), ann.Owned().Raw())

	require.NoError(t, students.Update(bob, func(row *student) *student {
		row.Value++
		return row
	}))
	row, err := students.Get(bob)
	require.NoError(t, err)
	assert.Equal(t, &student{Name: "bob", Value: 1}, row)

	require.NoError(t, students.Delete(ann))
	keys, err := rowdb.AllKeys(students.Keys())
	require.NoError(t, err)
	assert.Equal(t, []rowdb.KeyRef[student]{bob}, keys)
}

func scanAll(t *testing.T, s rowdb.Substrate, prefix []byte) (keys, values []string) {
	t.Helper()
	it := s.ScanPrefix(prefix)
	defer it.Close()
	for it.Next() {
		keys = append(keys, string(it.Key()))
		values = append(values, string(it.Value()))
	}
	require.NoError(t, it.Err())
	return keys, values
}
