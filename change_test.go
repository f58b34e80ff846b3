package rowdb

import "testing"

func TestOp_String(t *testing.T) {
	if OpPut.String() != "put" || OpDelete.String() != "delete" || OpNone.String() != "none" || OpPush.String() != "push" {
		t.Fatalf("unexpected Op.String values")
	}
	if got := Op(999).String(); got != "invalid op 999" {
		t.Fatalf("Op(999).String() = %q, wanted invalid op 999", got)
	}
}

func TestOnChange_Fields(t *testing.T) {
	var got []*Change
	db := setupMem(t, Options{
		OnChange: func(chg *Change) {
			got = append(got, chg)
		},
	})
	students := TableOf[Student](db)
	k := must(students.Push(&Student{Name: "bob"}))
	ensure(students.Delete(k))

	if len(got) != 2 {
		t.Fatalf("got %d changes, wanted 2", len(got))
	}
	if got[0].Table() != "student" || got[0].Op() != OpPush || got[0].Key() != 0 || !got[0].HasRow() {
		t.Fatalf("change[0] fields not set as expected: %v", got[0])
	}
	deepEqual(t, got[0].Row().(*Student), &Student{Name: "bob"})
	if got[1].Op() != OpDelete || got[1].HasRow() || got[1].Row() != nil {
		t.Fatalf("change[1] fields not set as expected: %v", got[1])
	}
}
