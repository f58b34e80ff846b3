package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/andreyvit/rowdb"
)

// Rows are decoded into `any`, which works for codecs that can describe
// themselves (MsgPack and JSON).
func (a *app) table(name string) *rowdb.Table[any] {
	return rowdb.NewTable[any](a.db, name)
}

func (a *app) newTableWriter(header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(a.out)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader(header)
	return tw
}

func parseKey(s string) (rowdb.Key[any], error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return rowdb.Key[any]{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return rowdb.KeyOf[any](v), nil
}

func formatRow(row *any) string {
	if row == nil {
		return "<none>"
	}
	raw, err := json.Marshal(*row)
	if err != nil {
		return fmt.Sprintf("** ERROR: %v", err)
	}
	return string(raw)
}

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.db.Tables()
			if err != nil {
				return err
			}
			tw := a.newTableWriter("table", "rows", "next_key")
			for _, name := range names {
				s, err := a.db.TableStats(name)
				if err != nil {
					return err
				}
				tw.Append([]string{name, strconv.Itoa(s.Rows), strconv.FormatUint(s.NextKey, 10)})
			}
			tw.Render()
			return nil
		},
	}
}

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <table>",
		Short: "List the keys of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := rowdb.AllKeys(a.table(args[0]).Keys())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(a.out, k.Owned().Raw())
			}
			return nil
		},
	}
}

func (a *app) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <table>",
		Short: "Print every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := a.newTableWriter("key", "row")
			tw.SetAutoWrapText(false)
			c := a.table(args[0]).Iterate()
			defer c.Close()
			for c.Next() {
				tw.Append([]string{strconv.FormatUint(c.RawKey(), 10), formatRow(c.Row())})
			}
			if err := c.Err(); err != nil {
				return err
			}
			tw.Render()
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key>",
		Short: "Print one row as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[1])
			if err != nil {
				return err
			}
			row, err := a.table(args[0]).Get(k)
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("%s/%v not found", args[0], k)
			}
			fmt.Fprintln(a.out, formatRow(row))
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <key>",
		Short: "Delete one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[1])
			if err != nil {
				return err
			}
			row, err := a.table(args[0]).Remove(k)
			if err != nil {
				return err
			}
			if row == nil {
				fmt.Fprintf(a.out, "%s/%v: no such row\n", args[0], k)
			} else {
				fmt.Fprintf(a.out, "deleted %s/%v: %s\n", args[0], k, formatRow(row))
			}
			return nil
		},
	}
}

func (a *app) counterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counter <table>",
		Short: "Print the key the next push will get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.table(args[0]).Counter()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, n)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <table>",
		Short: "Print storage statistics of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.db.TableStats(args[0])
			if err != nil {
				return err
			}
			tw := a.newTableWriter("stat", "value")
			tw.Append([]string{"rows", strconv.Itoa(s.Rows)})
			tw.Append([]string{"next_key", strconv.FormatUint(s.NextKey, 10)})
			tw.Append([]string{"key_size", strconv.Itoa(s.KeySize)})
			tw.Append([]string{"data_size", strconv.Itoa(s.DataSize)})
			tw.Append([]string{"total_size", strconv.Itoa(s.TotalSize())})
			tw.Render()
			return nil
		},
	}
}
