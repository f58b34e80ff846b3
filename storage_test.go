package rowdb_test

import (
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/rowdb"
	"github.com/andreyvit/rowdb/rowdbtest"
)

func TestMemSubstrate(t *testing.T) {
	rowdbtest.RunSubstrateTests(t, func(t *testing.T) rowdb.Substrate {
		return rowdb.NewMemSubstrate()
	})
}

func TestBoltSubstrate(t *testing.T) {
	rowdbtest.RunSubstrateTests(t, func(t *testing.T) rowdb.Substrate {
		bdb, err := bbolt.Open(filepath.Join(t.TempDir(), "test.db"), 0666, &bbolt.Options{NoSync: true})
		if err != nil {
			t.Fatal(err)
		}
		s, err := rowdb.NewBoltSubstrate(bdb)
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}
