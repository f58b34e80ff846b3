package rowdb

import (
	"strings"
	"testing"
)

func TestDumpFlags(t *testing.T) {
	if !DumpTableHeaders.Contains(DumpTableHeaders) || DumpTableHeaders.Contains(DumpRows) || !DumpAll.Contains(DumpStats|DumpRows) {
		t.Fatalf("DumpFlags.Contains returned unexpected results")
	}
}

func TestBase_Dump(t *testing.T) {
	db := setup(t)
	must(TableOf[Student](db).Push(&Student{Name: "bob", Value: 1}))
	must(TableOf[Enrollment](db).Push(&Enrollment{Course: "Go"}))

	out := must(db.Dump(DumpAll))
	for _, s := range []string{
		"enrollment (1 rows)",
		`enrollment.0 = {"c":"Go","s":0}`,
		"student (1 rows)",
		`student.0 = {"n":"bob","v":1}`,
		"student.stats: next_key = 1",
	} {
		if !strings.Contains(out, s) {
			t.Errorf("** Dump output missing %q; got:\n%s", s, out)
		}
	}

	out = must(db.Dump(DumpTableHeaders))
	if strings.Contains(out, "bob") {
		t.Errorf("** Dump(DumpTableHeaders) includes rows:\n%s", out)
	}
}

func TestFormatValue(t *testing.T) {
	deepEqual(t, FormatValue(JSON, []byte(`{"a":1}`)), `{"a":1}`)
	deepEqual(t, FormatValue(Proto, []byte{1, 2}), "(proto) 0102")
	if got := FormatValue(MsgPack, []byte{0xc1}); !strings.HasPrefix(got, "** ERROR") {
		t.Fatalf("FormatValue(garbage) = %q, wanted an error", got)
	}
}
