package rowdb

import (
	"fmt"
)

type (
	// Change describes one successful write, as passed to Options.OnChange.
	Change struct {
		table string
		op    Op
		key   uint64
		row   any
	}

	Op int
)

const (
	OpNone   Op = 0
	OpPut    Op = 1
	OpDelete Op = 2
	OpPush   Op = 3
)

func (chg *Change) Table() string {
	return chg.table
}
func (chg *Change) Op() Op {
	return chg.op
}
func (chg *Change) Key() uint64 {
	return chg.key
}
func (chg *Change) HasRow() bool {
	return chg.row != nil
}

// Row returns the written record (a *T) for puts and pushes, nil for deletes.
func (chg *Change) Row() any {
	return chg.row
}

func (chg *Change) String() string {
	return fmt.Sprintf("%s %s/%d", chg.op, chg.table, chg.key)
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpPush:
		return "push"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

func (c *conn) notify(table string, op Op, key uint64, row any) {
	c.WriteCount.Add(1)
	if c.onChange != nil {
		c.onChange(&Change{table, op, key, row})
	}
}
