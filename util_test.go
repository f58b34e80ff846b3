package rowdb

import (
	"testing"
)

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
}

func TestLoggableRow(t *testing.T) {
	if got := loggableRow[Student](nil); got != "<none>" {
		t.Fatalf("loggableRow(nil) = %q, wanted <none>", got)
	}
	got := loggableRow(&Student{Name: "ann", Value: 5})
	if got != `{"Name":"ann","Value":5}` {
		t.Fatalf("loggableRow = %s, wanted {\"Name\":\"ann\",\"Value\":5}", got)
	}
	if got := loggableRow(&struct{ C chan int }{}); got[0] != '<' {
		t.Fatalf("loggableRow(unmarshalable) = %q, wanted an <error> placeholder", got)
	}
}
