// Package flatten turns metadata trees into a header-aligned table.
//
// Headers are dotted paths ("common.title"). The header list is the union
// of every path seen, in first-seen order across the whole batch; rows
// discovered before a header existed hold "" in its column.
//
// Arrays are handled by length:
//
//	[]          -> one empty cell under the array's own path
//	[x]         -> a record is merged under "path." ; a scalar is the cell
//	[x, y, ...] -> pivot: one column per sub-key of the record elements,
//	               each cell a JSON array positioned by element; scalar
//	               elements become a JSON array under the array's path
package flatten

import (
	"github.com/baldanca/metadata-export/elide"
	"github.com/baldanca/metadata-export/record"
)

// Options tune a Flatten call.
type Options struct {
	// Prefix is prepended to every header.
	Prefix string
	// DisableArrayPivot treats the top-level arrays of each record as
	// records keyed by element index. Pivoting resumes one level down.
	DisableArrayPivot bool
	// KeepBinary keeps binary payloads as JSON byte arrays instead of
	// dropping them.
	KeepBinary bool
}

// Flatten builds the table for records, one row per record.
func Flatten(records []*record.Record, opts Options) Table {
	b := newBuilder()
	for _, r := range records {
		w := newWalker(opts.KeepBinary)
		w.enter(r)
		b.addRow(w.record(r, opts.Prefix, opts.DisableArrayPivot))
	}
	return b.table()
}

// FlattenValues is Flatten for arbitrary values. Arrays and maps are read
// as records keyed by element index; a scalar yields a single "value"
// column.
func FlattenValues(values []record.Value, opts Options) Table {
	b := newBuilder()
	for _, v := range values {
		w := newWalker(opts.KeepBinary)
		if r, ok := record.AsRecord(v); ok {
			w.enter(elide.Identity(v))
			b.addRow(w.record(r, opts.Prefix, opts.DisableArrayPivot))
			continue
		}
		var cells []cell
		if c, ok := w.leaf(opts.Prefix+"value", v); ok {
			cells = append(cells, c)
		}
		b.addRow(cells)
	}
	return b.table()
}

type walker struct {
	keep   bool
	active map[any]struct{}
}

func newWalker(keep bool) *walker {
	return &walker{keep: keep, active: make(map[any]struct{})}
}

func (w *walker) enter(id any) bool {
	if id == nil {
		return true
	}
	if _, ok := w.active[id]; ok {
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

// record returns the partial row of r. The caller has already entered r
// and merges the result.
func (w *walker) record(r *record.Record, prefix string, noPivot bool) []cell {
	var out []cell
	r.Range(func(k string, v record.Value) bool {
		key := prefix + k
		switch t := v.(type) {
		case record.Func:
		case record.Array:
			if noPivot {
				out = w.nested(out, key, t)
			} else {
				out = w.array(out, key, t)
			}
		case record.Map:
			if noPivot {
				out = w.nested(out, key, t)
			} else {
				out = w.array(out, key, t.Pairs())
			}
		case *record.Record:
			out = w.nested(out, key, t)
		default:
			if c, ok := w.leaf(key, v); ok {
				out = append(out, c)
			}
		}
		return true
	})
	return out
}

// nested merges the flattened form of an object-like value under key.
func (w *walker) nested(out []cell, key string, v record.Value) []cell {
	return w.merge(out, key, v, false)
}

func (w *walker) merge(out []cell, key string, v record.Value, noPivot bool) []cell {
	id := elide.Identity(v)
	if !w.enter(id) {
		return append(out, cell{header: key, value: elide.Circular})
	}
	defer w.leave(id)

	r, _ := record.AsRecord(v)
	return append(out, w.record(r, key+".", noPivot)...)
}

func (w *walker) array(out []cell, key string, elems record.Array) []cell {
	switch len(elems) {
	case 0:
		return append(out, cell{header: key, value: ""})
	case 1:
		e := elems[0]
		switch e.(type) {
		case record.Func:
			return out
		case *record.Record, record.Array, record.Map:
			return w.merge(out, key, e, true)
		}
		if c, ok := w.leaf(key, e); ok {
			out = append(out, c)
		}
		return out
	}
	return w.pivot(out, key, elems)
}

// pivot spreads an array of two or more elements over columns.
func (w *walker) pivot(out []cell, key string, elems record.Array) []cell {
	id := elide.Identity(elems)
	if !w.enter(id) {
		return append(out, cell{header: key, value: elide.Circular})
	}
	defer w.leave(id)

	clean, ok := elide.Sanitize(elems, w.keep).(record.Array)
	if !ok {
		return append(out, cell{header: key, value: elide.Circular})
	}

	var objects []*record.Record
	var scalars record.Array
	for _, e := range clean {
		switch e.(type) {
		case record.Func:
			continue
		case *record.Record, record.Array, record.Map:
			r, _ := record.AsRecord(e)
			objects = append(objects, r)
		default:
			scalars = append(scalars, e)
		}
	}

	if len(objects) > 0 {
		var subKeys []string
		seen := make(map[string]struct{})
		for _, r := range objects {
			r.Range(func(k string, _ record.Value) bool {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					subKeys = append(subKeys, k)
				}
				return true
			})
		}
		for _, sub := range subKeys {
			column := make(record.Array, len(objects))
			for i, r := range objects {
				v, ok := r.Get(sub)
				if !ok {
					v = record.Null{}
				}
				column[i] = v
			}
			out = append(out, cell{header: key + "." + sub, value: jsonText(column)})
		}
	}
	if len(scalars) > 0 {
		out = append(out, cell{header: key, value: jsonText(scalars)})
	}
	return out
}

// leaf renders a non-composite value. Binary payloads are dropped unless
// kept; functions are never rendered.
func (w *walker) leaf(key string, v record.Value) (cell, bool) {
	switch t := v.(type) {
	case record.Func:
		return cell{}, false
	case record.Binary:
		if !w.keep {
			return cell{}, false
		}
		return cell{header: key, value: jsonText(t)}, true
	}
	return cell{header: key, value: record.Text(v)}, true
}

func jsonText(v interface{ MarshalJSON() ([]byte, error) }) string {
	b, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}
