package badgerkv

import (
	"path/filepath"
	"sync"
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
	dir := filepath.Join(t.TempDir(), "badger")
	opt := Options{NoSync: true, Logger: quietLogger()}

	s, err := Open(dir, opt)
	require.NoError(t, err)
	db := rowdb.OpenSubstrate(s, rowdb.Options{IsTesting: true, KeyEncoding: rowdb.DecimalKeys})
	tbl := rowdb.NewTable[string](db, "notes")
	for _, note := range []string{"a", "b", "c"} {
		_, err := tbl.Push(&note)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	s, err = Open(dir, opt)
	require.NoError(t, err)
	db = rowdb.OpenSubstrate(s, rowdb.Options{IsTesting: true, KeyEncoding: rowdb.DecimalKeys})
	defer db.Close()
	tbl = rowdb.NewTable[string](db, "notes")

	rows, err := rowdb.All(tbl.Iterate())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c", *rows[2])

	raw, err := s.Get([]byte("/t/notes/i/1"))
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestStore_UpdateRetriesOnConflict(t *testing.T) {
	s, err := Open("", Options{InMemory: true, NoSync: true, Logger: quietLogger()})
	require.NoError(t, err)
	db := rowdb.OpenSubstrate(s, rowdb.Options{IsTesting: true})
	defer db.Close()

	tbl := rowdb.NewTable[int](db, "hits")
	zero := 0
	k, err := tbl.Push(&zero)
	require.NoError(t, err)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				assert.NoError(t, tbl.Update(k, func(n *int) *int {
					v := *n + 1
					return &v
				}))
			}
		}()
	}
	wg.Wait()

	n, err := tbl.Get(k)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, *n)
}
