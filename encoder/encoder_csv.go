package encoder

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/baldanca/metadata-export/flatten"
)

// CSVEncoder flattens the batch and renders it as always-quoted CSV.
type CSVEncoder struct {
	KeepBinary bool
}

func (CSVEncoder) FileExtension() string { return ".csv" }
func (CSVEncoder) ContentType() string   { return "text/csv" }

func (e CSVEncoder) Encode(ctx context.Context, b Batch) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, b, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e CSVEncoder) EncodeTo(ctx context.Context, b Batch, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	t := flatten.FlattenValues(b.Items, flatten.Options{KeepBinary: e.KeepBinary})
	if err := WriteCSV(w, t); err != nil {
		return &Error{Format: "csv", Items: len(b.Items), Err: err}
	}
	return checkCtx(ctx)
}

// SerializeCSV renders t as CSV text: the header row then one line per
// row, every cell wrapped in double quotes with embedded quotes doubled,
// every line ending in "\n". Cells holding raw newlines stay multi-line
// inside their quotes.
func SerializeCSV(t flatten.Table) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, t)
	return buf.Bytes()
}

// WriteCSV is SerializeCSV streaming into w.
func WriteCSV(w io.Writer, t flatten.Table) error {
	bw := bufio.NewWriter(w)
	writeCSVLine(bw, t.Headers)
	for _, row := range t.Rows {
		writeCSVLine(bw, row)
	}
	return bw.Flush()
}

// encoding/csv only quotes when needed; every cell here is quoted.
func writeCSVLine(w *bufio.Writer, cells []string) {
	w.WriteByte('"')
	for i, c := range cells {
		if i > 0 {
			w.WriteString(`","`)
		}
		w.WriteString(strings.ReplaceAll(c, `"`, `""`))
	}
	w.WriteString("\"\n")
}
