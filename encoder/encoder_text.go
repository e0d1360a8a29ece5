package encoder

import (
	"context"
	"strings"

	"github.com/baldanca/metadata-export/record"
)

// TextEncoder renders values in their plain string form, one per line.
// It is meant for scalar cells.
type TextEncoder struct{}

func (TextEncoder) FileExtension() string { return ".txt" }
func (TextEncoder) ContentType() string   { return "text/plain; charset=utf-8" }

func (TextEncoder) Encode(ctx context.Context, b Batch) ([]byte, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	items := b.Items
	if !b.Collection && len(items) > 1 {
		items = items[:1]
	}
	lines := make([]string, len(items))
	for i, v := range items {
		lines[i] = record.Text(v)
	}
	return []byte(strings.Join(lines, "\n")), nil
}
