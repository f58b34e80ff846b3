package pebblekv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/rowdb"
	"github.com/andreyvit/rowdb/rowdbtest"
)

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func TestStore_Conformance(t *testing.T) {
	rowdbtest.RunSubstrateTests(t, func(t *testing.T) rowdb.Substrate {
		s, err := Open("", Options{InMemory: true, NoSync: true, Logger: quietLogger()})
		require.NoError(t, err)
		return s
	})
}

func TestStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pebble")
	opt := Options{NoSync: true, CacheSize: 1 << 20, Logger: quietLogger()}

	s, err := Open(dir, opt)
	require.NoError(t, err)
	db := rowdb.OpenSubstrate(s, rowdb.Options{IsTesting: true})
	tbl := rowdb.NewTable[string](db, "notes")
	k, err := tbl.Push(ptr("hello"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err = Open(dir, opt)
	require.NoError(t, err)
	db = rowdb.OpenSubstrate(s, rowdb.Options{IsTesting: true})
	defer db.Close()
	tbl = rowdb.NewTable[string](db, "notes")

	v, err := tbl.Get(k.Owned())
	require.NoError(t, err)
	assert.Equal(t, "hello", *v)
	n, err := tbl.Counter()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestOpen_Error(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := Open(filepath.Join(file, "sub"), Options{Logger: quietLogger()})
	var oe *rowdb.OpenError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "pebble", oe.Backend)
}

func ptr[T any](v T) *T {
	return &v
}
