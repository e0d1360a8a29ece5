package record

// Field is one key/value member of a Record.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for Field{Key: key, Value: v}.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// Record is a string-keyed mapping that remembers insertion order.
//
// Setting an existing key replaces its value in place; the key keeps its
// original position. The zero value is an empty record ready to use.
type Record struct {
	keys []string
	vals map[string]Value
}

// New builds a record from fields, in order.
func New(fields ...Field) *Record {
	r := &Record{vals: make(map[string]Value, len(fields))}
	for _, f := range fields {
		r.Set(f.Key, f.Value)
	}
	return r
}

// Set stores v under key and returns r for chaining.
func (r *Record) Set(key string, v Value) *Record {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = orNull(v)
	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Delete removes key, keeping the order of the remaining keys.
func (r *Record) Delete(key string) {
	if r == nil {
		return
	}
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns a copy of the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

// Range calls fn for each member in insertion order until fn returns false.
func (r *Record) Range(fn func(key string, v Value) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.vals[k]) {
			return
		}
	}
}

// Fields returns the members in insertion order.
func (r *Record) Fields() []Field {
	out := make([]Field, 0, r.Len())
	r.Range(func(k string, v Value) bool {
		out = append(out, Field{Key: k, Value: v})
		return true
	})
	return out
}

// Sub returns the nested record stored under key, if any.
func (r *Record) Sub(key string) (*Record, bool) {
	v, ok := r.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Record)
	return sub, ok
}

// Clone returns a shallow copy: the key order and the member values are
// copied, nested composites are shared.
func (r *Record) Clone() *Record {
	out := &Record{
		keys: make([]string, 0, r.Len()),
		vals: make(map[string]Value, r.Len()),
	}
	r.Range(func(k string, v Value) bool {
		out.keys = append(out.keys, k)
		out.vals[k] = v
		return true
	})
	return out
}

// AsRecord views an object-like value as a record: records are returned
// as is, arrays and maps are keyed by element index ("0", "1", ...).
// ok is false for scalars, binaries and functions.
func AsRecord(v Value) (r *Record, ok bool) {
	switch t := v.(type) {
	case *Record:
		return t, true
	case Array:
		return indexed(t), true
	case Map:
		return indexed(t.Pairs()), true
	}
	return nil, false
}

func indexed(a Array) *Record {
	r := &Record{keys: make([]string, 0, len(a)), vals: make(map[string]Value, len(a))}
	for i, v := range a {
		r.Set(itoa(i), v)
	}
	return r
}
