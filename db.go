package rowdb

import (
	"fmt"
	"log"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

// Base is a handle to an open database. Tables are obtained from it with
// TableOf and NewTable. A Base and all of its clones and tables share one
// substrate connection.
type Base struct {
	*conn
}

type conn struct {
	sub      Substrate
	bdb      *bbolt.DB
	logf     func(format string, args ...any)
	verbose  bool
	strict   bool
	codec    Codec
	keyEnc   KeyEncoding
	onChange func(chg *Change)

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64

	closeOnce sync.Once
	closeErr  error

	typesLock  sync.Mutex
	tableTypes map[string]reflect.Type
}

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// Codec encodes records; MsgPack if nil.
	Codec Codec

	// KeyEncoding lays out item keys; BigEndianKeys if nil. Use DecimalKeys
	// to read and write stores created with the legacy decimal layout.
	KeyEncoding KeyEncoding

	// OnChange, if set, is called after every successful write.
	OnChange func(chg *Change)
}

// Open opens the Bolt database at path, creating it if needed.
func Open(path string, opt Options) (*Base, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, &OpenError{"bolt", path, err}
	}
	sub, err := newBoltSubstrate(bdb)
	if err != nil {
		bdb.Close()
		return nil, &OpenError{"bolt", path, err}
	}

	b := OpenSubstrate(sub, opt)
	b.bdb = bdb
	return b, nil
}

// OpenSubstrate wraps an already open substrate. Closing the Base closes it.
func OpenSubstrate(sub Substrate, opt Options) *Base {
	if sub == nil {
		panic("rowdb: nil substrate")
	}
	c := &conn{
		sub:        sub,
		logf:       opt.Logf,
		verbose:    opt.Verbose,
		strict:     opt.IsTesting,
		codec:      opt.Codec,
		keyEnc:     opt.KeyEncoding,
		onChange:   opt.OnChange,
		tableTypes: make(map[string]reflect.Type),
	}
	if c.logf == nil {
		c.logf = log.Printf
	}
	if c.codec == nil {
		c.codec = defaultCodec
	}
	if c.keyEnc == nil {
		c.keyEnc = defaultKeyEncoding
	}
	return &Base{c}
}

// Clone returns another handle to the same connection.
func (b *Base) Clone() *Base {
	return &Base{b.conn}
}

func (b *Base) Substrate() Substrate {
	return b.sub
}

// Bolt returns the underlying Bolt database, or nil if the Base wasn't
// opened with Open.
func (b *Base) Bolt() *bbolt.DB {
	return b.bdb
}

func (b *Base) Codec() Codec             { return b.codec }
func (b *Base) KeyEncoding() KeyEncoding { return b.keyEnc }

// Close closes the substrate. Closing any clone closes them all; subsequent
// calls return the first call's result.
func (b *Base) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.sub.Close()
	})
	return b.closeErr
}

// Tables lists the names of tables that have ever been written to, in
// substrate order. This walks every key of every table and is meant for
// diagnostics.
func (b *Base) Tables() ([]string, error) {
	it := b.sub.ScanPrefix([]byte(tablePathPrefix))
	defer it.Close()
	var names []string
	seen := make(map[string]bool)
	for it.Next() {
		name, ok := tableNameFromCounterKey(it.Key())
		if !ok || len(it.Value()) != counterSize || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := it.Err(); err != nil {
		return nil, substrateErr("scan", []byte(tablePathPrefix), err)
	}
	return names, nil
}

// registerTable remembers which record type each table name is used with.
// Two types sharing a name alias the same rows, which is allowed but is
// nearly always a mistake, so it gets logged.
func (c *conn) registerTable(name string, rt reflect.Type) {
	c.typesLock.Lock()
	prev, found := c.tableTypes[name]
	if !found {
		c.tableTypes[name] = rt
	}
	c.typesLock.Unlock()
	if found && prev != rt {
		if c.strict {
			panic(fmt.Errorf("table %s used with %v, previously with %v", name, rt, prev))
		}
		c.logf("db: WARNING table %s used with %v, previously with %v", name, rt, prev)
	}
}

func (c *conn) String() string {
	return fmt.Sprintf("rowdb(%T)", c.sub)
}
