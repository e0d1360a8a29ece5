package record

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"time"
)

// From converts a native Go value into a Value.
//
// Maps with string keys become records with keys in sorted order (Go maps
// have no insertion order to preserve), slices become arrays, []byte
// becomes Binary, and anything unrecognised is coerced with fmt.Sprint.
func From(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case []byte:
		return Binary{Data: t}
	case time.Time:
		return Date{t}
	case *regexp.Regexp:
		return Pattern{t}
	case int:
		return Number(t)
	case int8:
		return Number(t)
	case int16:
		return Number(t)
	case int32:
		return Number(t)
	case int64:
		return Number(t)
	case uint:
		return Number(t)
	case uint8:
		return Number(t)
	case uint16:
		return Number(t)
	case uint32:
		return Number(t)
	case uint64:
		return Number(t)
	case float32:
		return Number(t)
	case float64:
		return Number(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r := New()
		for _, k := range keys {
			r.Set(k, From(t[k]))
		}
		return r
	case []any:
		a := make(Array, len(t))
		for i, e := range t {
			a[i] = From(e)
		}
		return a
	case fmt.Stringer:
		return String(t.String())
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Func:
		return Func{Name: rv.Type().String()}
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}
		}
		return From(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		a := make(Array, rv.Len())
		for i := range a {
			a[i] = From(rv.Index(i).Interface())
		}
		return a
	case reflect.Map:
		m := make(Map, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m = append(m, Entry{Key: From(iter.Key().Interface()), Value: From(iter.Value().Interface())})
		}
		sort.SliceStable(m, func(i, j int) bool { return Text(m[i].Key) < Text(m[j].Key) })
		return m
	}
	return String(fmt.Sprint(x))
}
