package rowdb

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders every table of the database as text, for debugging and tests.
// Rows are decoded without knowing their record type, so they come out the
// way the codec represents them generically.
func (b *Base) Dump(f DumpFlags) (string, error) {
	names, err := b.Tables()
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	for _, name := range names {
		err := b.dumpTable(&buf, f, name)
		if err != nil {
			return buf.String(), err
		}
	}
	return buf.String(), nil
}

func (b *Base) dumpTable(w *strings.Builder, f DumpFlags, name string) error {
	s, err := b.TableStats(name)
	if err != nil {
		return err
	}

	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d rows)\n", name, s.Rows)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: next_key = %d, key_size = %d, data_size = %d, total_size = %d\n", name, s.NextKey, s.KeySize, s.DataSize, s.TotalSize())
	}

	if f.Contains(DumpRows) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		ns := NewNamespace(name, b.keyEnc)
		it := b.sub.ScanPrefix(ns.itemPrefix)
		defer it.Close()
		for it.Next() {
			b.dumpRow(w, ns, it.Key(), it.Value())
		}
		if err := it.Err(); err != nil {
			return substrateErr("scan", ns.itemPrefix, err)
		}
	}
	return nil
}

func (b *Base) dumpRow(w *strings.Builder, ns Namespace, k, v []byte) {
	key, err := ns.ParseItemKey(k)
	if err != nil {
		fmt.Fprintf(w, "%s.%s = ** ERROR: %v\n", ns.name, hexstr(k[len(ns.itemPrefix):]), err)
		return
	}
	fmt.Fprintf(w, "%s.%d = %s\n", ns.name, key, FormatValue(b.codec, v))
}

// FormatValue renders a stored value as JSON when codec can decode it
// generically, and as hex otherwise.
func FormatValue(codec Codec, data []byte) string {
	if codec == Proto {
		return "(proto) " + hexstr(data)
	}
	var v any
	err := codec.Decode(data, &v)
	if err != nil {
		return fmt.Sprintf("** ERROR: %v", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("** ERROR: %v: %s", err, hexstr(data))
	}
	return string(raw)
}
