package rowdb

// TableStats describes the stored footprint of a table.
type TableStats struct {
	Rows     int
	KeySize  int
	DataSize int

	// NextKey is the value of the table's counter: the key the next Push
	// will get.
	NextKey uint64
}

func (ts *TableStats) TotalSize() int {
	return ts.KeySize + ts.DataSize
}

// TableStats scans the table with the given name. Stats work on raw bytes,
// so the table's record type doesn't need to be known.
func (b *Base) TableStats(name string) (TableStats, error) {
	ns := NewNamespace(name, b.keyEnc)

	counter, err := b.sub.Get(ns.counterKey)
	if err != nil {
		return TableStats{}, substrateErr("get", ns.counterKey, err)
	}
	next, err := decodeCounter(counter)
	if err != nil {
		return TableStats{}, decodeErrf(name, "next_key", err, "reading counter")
	}
	result := TableStats{NextKey: next}
	if counter != nil {
		result.KeySize += len(ns.counterKey)
		result.DataSize += len(counter)
	}

	it := b.sub.ScanPrefix(ns.itemPrefix)
	defer it.Close()
	for it.Next() {
		result.Rows++
		result.KeySize += len(it.Key())
		result.DataSize += len(it.Value())
	}
	if err := it.Err(); err != nil {
		return TableStats{}, substrateErr("scan", ns.itemPrefix, err)
	}
	b.ReadCount.Add(uint64(result.Rows) + 1)
	return result, nil
}

func (tbl *Table[T]) Stats() (TableStats, error) {
	return tbl.base.TableStats(tbl.ns.name)
}
