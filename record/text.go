package record

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Text returns the canonical string form of v, the form a table cell holds.
//
// Null and Func are empty, numbers use the shortest decimal form, dates are
// RFC 3339, patterns are /expr/, arrays join their elements with commas.
// Records fall back to their JSON form.
func Text(v Value) string {
	switch t := v.(type) {
	case nil, Null, Func:
		return ""
	case String:
		return string(t)
	case Number:
		return formatNumber(float64(t))
	case Bool:
		return strconv.FormatBool(bool(t))
	case Date:
		return formatDate(t.Time)
	case Pattern:
		if t.Regexp == nil {
			return ""
		}
		return "/" + t.Regexp.String() + "/"
	case Binary:
		var b strings.Builder
		for i, c := range t.Data {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(c)))
		}
		return b.String()
	case Array:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Text(e)
		}
		return strings.Join(parts, ",")
	case Map:
		return Text(t.Pairs())
	case *Record:
		b, err := t.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func itoa(i int) string { return strconv.Itoa(i) }
