package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/baldanca/metadata-export/flatten"
)

// ErrNoColumns is returned when a batch flattens to a table without headers;
// a Parquet file needs at least one column.
var ErrNoColumns = errors.New("table has no columns")

// ParquetEncoder flattens the batch and writes it as a Parquet file with
// one optional string column per header. Empty cells are stored as null.
type ParquetEncoder struct {
	KeepBinary bool
	// Compression (optional): "", "snappy", "gzip", "zstd"
	Compression string
}

func (ParquetEncoder) FileExtension() string { return ".parquet" }
func (ParquetEncoder) ContentType() string   { return "application/vnd.apache.parquet" }

func (e ParquetEncoder) Encode(ctx context.Context, b Batch) ([]byte, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	options := make([]parquet.WriterOption, 0, 2)

	switch e.Compression {
	case "":
		// no compression
	case "snappy":
		options = append(options, parquet.Compression(&parquet.Snappy))
	case "gzip":
		options = append(options, parquet.Compression(&parquet.Gzip))
	case "zstd":
		options = append(options, parquet.Compression(&parquet.Zstd))
	default:
		return nil, fmt.Errorf("unsupported parquet compression: %q", e.Compression)
	}

	t := flatten.FlattenValues(b.Items, flatten.Options{KeepBinary: e.KeepBinary})
	data, err := writeParquet(t, options)
	if err != nil {
		return nil, &Error{Format: "parquet", Items: len(b.Items), Err: err}
	}

	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

// TableSchema is the Parquet schema of t. Parquet orders group fields by
// name, so columns do not follow header order.
func TableSchema(t flatten.Table) *parquet.Schema {
	group := make(parquet.Group, len(t.Headers))
	for _, h := range t.Headers {
		group[h] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("metadata", group)
}

func writeParquet(t flatten.Table, options []parquet.WriterOption) ([]byte, error) {
	if len(t.Headers) == 0 {
		return nil, ErrNoColumns
	}
	output := &bytes.Buffer{}
	schema := TableSchema(t)

	// leaf column i of the schema -> column of the table
	columns := schema.Columns()
	index := make([]int, len(columns))
	for i, path := range columns {
		j, ok := t.Index(path[0])
		if !ok {
			return nil, fmt.Errorf("column %q missing from table", path[0])
		}
		index[i] = j
	}

	w := parquet.NewWriter(output, append([]parquet.WriterOption{schema}, options...)...)

	rows := make([]parquet.Row, len(t.Rows))
	for r, cells := range t.Rows {
		row := make(parquet.Row, len(columns))
		for i, j := range index {
			if cells[j] == "" {
				row[i] = parquet.NullValue().Level(0, 0, i)
				continue
			}
			row[i] = parquet.ByteArrayValue([]byte(cells[j])).Level(0, 1, i)
		}
		rows[r] = row
	}

	if _, err := w.WriteRows(rows); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}
