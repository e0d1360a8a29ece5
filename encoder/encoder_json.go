package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/baldanca/metadata-export/elide"
	"github.com/baldanca/metadata-export/record"
)

// ErrEmptyBatch is returned when a single-document batch has no item.
var ErrEmptyBatch = errors.New("empty batch")

// JSONEncoder renders sanitized metadata trees in key order.
type JSONEncoder struct {
	KeepBinary bool
	Pretty     bool
}

func (JSONEncoder) FileExtension() string { return ".json" }
func (JSONEncoder) ContentType() string   { return "application/json" }

func (e JSONEncoder) Encode(ctx context.Context, b Batch) ([]byte, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var doc record.Value
	if b.Collection {
		items := make(record.Array, len(b.Items))
		for i, it := range b.Items {
			items[i] = elide.Sanitize(it, e.KeepBinary)
		}
		doc = items
	} else {
		if len(b.Items) == 0 {
			return nil, &Error{Format: "json", Err: ErrEmptyBatch}
		}
		doc = elide.Sanitize(b.Items[0], e.KeepBinary)
	}

	data, err := record.Marshal(doc)
	if err != nil {
		return nil, &Error{Format: "json", Items: len(b.Items), Err: err}
	}
	if e.Pretty {
		var out bytes.Buffer
		if err := json.Indent(&out, data, "", "  "); err != nil {
			return nil, &Error{Format: "json", Items: len(b.Items), Err: err}
		}
		data = out.Bytes()
	}

	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

func (e JSONEncoder) EncodeTo(ctx context.Context, b Batch, w io.Writer) error {
	data, err := e.Encode(ctx, b)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &Error{Format: "json", Items: len(b.Items), Err: err}
	}
	return nil
}
