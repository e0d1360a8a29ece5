// Package elide replaces opaque binary payloads in metadata trees with a
// fixed placeholder.
package elide

import (
	"github.com/baldanca/metadata-export/record"
)

// Sentinel replaces an elided binary payload.
const Sentinel = "Binary data"

// Circular replaces a reference back to an ancestor of the node being walked.
const Circular = "[Circular]"

// IsBinary reports whether v is an opaque binary payload.
func IsBinary(v record.Value) bool {
	_, ok := v.(record.Binary)
	return ok
}

// Sanitize returns a copy of v in which every binary payload found below
// the root has been replaced by Sentinel, unless keepBinary is set.
//
// The walk descends into records, arrays and maps alike. Scalars and
// functions pass through. The input is never modified. A reference back to
// an ancestor is replaced by Circular, so cyclic input terminates.
func Sanitize(v record.Value, keepBinary bool) record.Value {
	w := walker{keep: keepBinary, active: make(map[any]struct{})}
	return w.value(v)
}

type walker struct {
	keep   bool
	active map[any]struct{}
}

func (w *walker) value(v record.Value) record.Value {
	switch t := v.(type) {
	case *record.Record:
		return w.record(t)
	case record.Array:
		return w.array(t)
	case record.Map:
		return w.mapValue(t)
	}
	return v
}

// child handles a member of a composite value.
func (w *walker) child(v record.Value) record.Value {
	if IsBinary(v) && !w.keep {
		return record.String(Sentinel)
	}
	return w.value(v)
}

func (w *walker) record(r *record.Record) record.Value {
	if !w.enter(r) {
		return record.String(Circular)
	}
	defer w.leave(r)

	out := record.New()
	r.Range(func(k string, v record.Value) bool {
		out.Set(k, w.child(v))
		return true
	})
	return out
}

func (w *walker) array(a record.Array) record.Value {
	id := Identity(a)
	if !w.enter(id) {
		return record.String(Circular)
	}
	defer w.leave(id)

	out := make(record.Array, len(a))
	for i, e := range a {
		out[i] = w.child(e)
	}
	return out
}

func (w *walker) mapValue(m record.Map) record.Value {
	id := Identity(m)
	if !w.enter(id) {
		return record.String(Circular)
	}
	defer w.leave(id)

	out := make(record.Map, len(m))
	for i, e := range m {
		out[i] = record.Entry{Key: w.child(e.Key), Value: w.child(e.Value)}
	}
	return out
}

func (w *walker) enter(id any) bool {
	if id == nil {
		return true
	}
	if _, seen := w.active[id]; seen {
		return false
	}
	w.active[id] = struct{}{}
	return true
}

func (w *walker) leave(id any) {
	if id != nil {
		delete(w.active, id)
	}
}

// Identity returns a comparable key identifying the storage behind a
// composite value, or nil when the value has no identity worth tracking
// (scalars, empty arrays).
func Identity(v record.Value) any {
	switch t := v.(type) {
	case *record.Record:
		return t
	case record.Array:
		if len(t) == 0 {
			return nil
		}
		return &t[0]
	case record.Map:
		if len(t) == 0 {
			return nil
		}
		return &t[0]
	}
	return nil
}
