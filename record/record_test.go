package record

import (
	"math"
	"regexp"
	"testing"
	"time"
)

func TestRecord_SetKeepsInsertionOrder(t *testing.T) {
	r := New(F("b", Number(1)), F("a", Number(2)))
	r.Set("c", Number(3))
	r.Set("b", String("again"))

	keys := r.Keys()
	want := []string{"b", "a", "c"}
	if len(keys) != len(want) {
		t.Fatalf("keys=%v want=%v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys=%v want=%v", keys, want)
		}
	}
	v, _ := r.Get("b")
	if v != String("again") {
		t.Fatalf("b=%v", v)
	}
}

func TestRecord_DeleteKeepsOrder(t *testing.T) {
	r := New(F("a", Null{}), F("b", Null{}), F("c", Null{}))
	r.Delete("b")
	r.Delete("missing")
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestRecord_NilSafe(t *testing.T) {
	var r *Record
	if r.Len() != 0 {
		t.Fatalf("len=%d", r.Len())
	}
	if _, ok := r.Get("x"); ok {
		t.Fatalf("expected miss on nil record")
	}
	r.Range(func(string, Value) bool {
		t.Fatalf("range on nil record")
		return false
	})
}

func TestRecord_SetNilStoresNull(t *testing.T) {
	r := New()
	r.Set("x", nil)
	v, ok := r.Get("x")
	if !ok || v.Kind() != KindNull {
		t.Fatalf("got %v ok=%v", v, ok)
	}
}

func TestAsRecord_IndexesArrays(t *testing.T) {
	r, ok := AsRecord(Array{String("x"), Number(2)})
	if !ok {
		t.Fatalf("expected ok")
	}
	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "0" || keys[1] != "1" {
		t.Fatalf("keys=%v", keys)
	}
	if _, ok := AsRecord(String("s")); ok {
		t.Fatalf("scalar should not view as record")
	}
}

func TestText(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   Value
		want string
	}{
		{"nil", nil, ""},
		{"null", Null{}, ""},
		{"string", String("abc"), "abc"},
		{"int", Number(42), "42"},
		{"float", Number(1.5), "1.5"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
		{"large", Number(1e21), "1e+21"},
		{"nan", Number(math.NaN()), "NaN"},
		{"bool", Bool(true), "true"},
		{"date", Date{when}, "2024-03-01T12:00:00Z"},
		{"pattern", Pattern{regexp.MustCompile(`a+b`)}, "/a+b/"},
		{"array", Array{Number(1), Null{}, String("x")}, "1,,x"},
		{"binary", Binary{Data: []byte{1, 2}}, "1,2"},
		{"func", Func{Name: "f"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Fatalf("Text()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestObjectLike(t *testing.T) {
	for _, v := range []Value{New(), Array{}, Map{}, Binary{}} {
		if !ObjectLike(v) {
			t.Fatalf("%s should be object-like", v.Kind())
		}
	}
	for _, v := range []Value{Null{}, String(""), Number(0), Bool(false), Func{}} {
		if ObjectLike(v) {
			t.Fatalf("%s should not be object-like", v.Kind())
		}
	}
}

func TestFrom(t *testing.T) {
	v := From(map[string]any{
		"b":    []any{1, "two", nil},
		"a":    true,
		"pic":  []byte{0xff},
		"when": time.Unix(0, 0).UTC(),
		"fn":   func() {},
		"nums": []int{1, 2},
	})
	r, ok := v.(*Record)
	if !ok {
		t.Fatalf("got %T", v)
	}
	keys := r.Keys()
	want := []string{"a", "b", "fn", "nums", "pic", "when"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys=%v want=%v", keys, want)
		}
	}
	if b, _ := r.Get("b"); b.Kind() != KindArray {
		t.Fatalf("b kind=%s", b.Kind())
	}
	if p, _ := r.Get("pic"); p.Kind() != KindBinary {
		t.Fatalf("pic kind=%s", p.Kind())
	}
	if f, _ := r.Get("fn"); f.Kind() != KindFunc {
		t.Fatalf("fn kind=%s", f.Kind())
	}
	if n, _ := r.Get("nums"); Text(n) != "1,2" {
		t.Fatalf("nums=%q", Text(n))
	}
}
