package rowdb

import (
	"encoding/json"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestKey_Encoding(t *testing.T) {
	k := KeyOf[Student](300)

	raw, err := json.Marshal(Enrollment{Student: k, Course: "Go"})
	ensure(err)
	deepEqual(t, string(raw), `{"Student":300,"Course":"Go"}`)
	var e Enrollment
	ensure(json.Unmarshal(raw, &e))
	deepEqual(t, e.Student, k)

	// readable as a bare integer
	raw = must(msgpack.Marshal(k))
	var n uint64
	ensure(msgpack.Unmarshal(raw, &n))
	deepEqual(t, n, uint64(300))
	var k2 Key[Student]
	ensure(msgpack.Unmarshal(raw, &k2))
	deepEqual(t, k2, k)

	if json.Unmarshal([]byte(`"x"`), &k2) == nil {
		t.Fatalf("Unmarshal of a string into Key succeeded")
	}
}

func TestKey_Strings(t *testing.T) {
	db := setupMem(t, Options{})
	students := TableOf[Student](db)
	ref := KeyOf[Student](7).Ref(students)
	deepEqual(t, ref.String(), "student/7")
	deepEqual(t, ref.Table(), "student")
	deepEqual(t, ref.Owned().String(), "7")
	deepEqual(t, must(ref.Value(students)), uint64(7))
}
