package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// MarshalJSON encodes the record as an object in insertion order.
// Func members are omitted. The tree must be acyclic; sanitize it first
// when that is not guaranteed.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	var err error
	r.Range(func(k string, v Value) bool {
		if _, skip := v.(Func); skip {
			return true
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var kb, vb []byte
		if kb, err = marshalString(k); err != nil {
			return false
		}
		if vb, err = Marshal(v); err != nil {
			err = fmt.Errorf("key %q: %w", k, err)
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the array; Func and nil elements become null.
func (a Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the map as an array of [key, value] pairs.
func (m Map) MarshalJSON() ([]byte, error) { return m.Pairs().MarshalJSON() }

// MarshalJSON encodes the payload as an array of byte values, never base64.
func (b Binary) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 2+len(b.Data)*4)
	buf = append(buf, '[')
	for i, c := range b.Data {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(c), 10)
	}
	return append(buf, ']'), nil
}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }
func (Func) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON encodes non-finite numbers as null.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// MarshalJSON encodes the pattern as its /expr/ string.
func (p Pattern) MarshalJSON() ([]byte, error) { return marshalString(Text(p)) }

// Marshal encodes any Value as JSON: records keep their key order, binaries
// become byte arrays and strings are not HTML-escaped.
func Marshal(v Value) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case String:
		return marshalString(string(t))
	case json.Marshaler:
		return t.MarshalJSON()
	}
	return json.Marshal(v)
}

// marshalString encodes s without HTML escaping so "&" and "<" survive
// into table cells as typed.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ParseJSON decodes a JSON document into a Value, keeping object keys in
// document order. Numbers become Number.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return v, nil
}

// ParseRecord is ParseJSON for documents whose top level is an object.
func ParseRecord(data []byte) (*Record, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is %s, want object", v.Kind())
	}
	return r, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			r := New()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				r.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return r, nil
		case '[':
			a := Array{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				a = append(a, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return a, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}
