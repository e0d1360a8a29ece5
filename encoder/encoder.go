package encoder

import (
	"context"
	"fmt"
	"io"

	"github.com/baldanca/metadata-export/record"
)

// Batch is the input of one encode call.
//
// A collection renders every item (a JSON array, one table row per item).
// A non-collection batch renders Items[0] as a single document.
type Batch struct {
	Items      []record.Value
	Collection bool
}

// Single returns a batch rendering v on its own.
func Single(v record.Value) Batch { return Batch{Items: []record.Value{v}} }

// Collection returns a batch rendering every item together.
func Collection(items ...record.Value) Batch { return Batch{Items: items, Collection: true} }

// Encoder converts a batch of metadata trees into a file payload.
//
// Implementations must be safe for concurrent use unless documented otherwise.
type Encoder interface {
	Encode(ctx context.Context, b Batch) (data []byte, err error)
	FileExtension() string
	ContentType() string
}

// StreamEncoder is an optional interface for encoders that can write directly
// to an io.Writer to avoid buffering the full output in memory.
type StreamEncoder interface {
	EncodeTo(ctx context.Context, b Batch, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// Error reports a failed encode.
type Error struct {
	Format string
	Items  int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encode %s (%d items): %v", e.Format, e.Items, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
