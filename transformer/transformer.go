// Package transformer turns queued envelopes into exportable sources.
package transformer

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/baldanca/metadata-export/exporter"
	"github.com/baldanca/metadata-export/record"
	"github.com/baldanca/metadata-export/source"
)

var ErrNoName = errors.New("envelope has no name")

// Transformer converts one envelope into a source.
type Transformer interface {
	Transform(ctx context.Context, in source.Envelope) (exporter.Source, error)
}

// Func adapts a function to Transformer.
type Func func(ctx context.Context, in source.Envelope) (exporter.Source, error)

func (f Func) Transform(ctx context.Context, in source.Envelope) (exporter.Source, error) {
	return f(ctx, in)
}

// JSONRecord parses the payload as the JSON form of a metadata tree.
// The envelope name is used as the source path; its base name becomes
// the source name.
type JSONRecord struct{}

func (JSONRecord) Transform(ctx context.Context, in source.Envelope) (exporter.Source, error) {
	if err := ctx.Err(); err != nil {
		return exporter.Source{}, err
	}
	if in.Name == "" {
		return exporter.Source{}, ErrNoName
	}
	md, err := record.ParseRecord(in.Payload)
	if err != nil {
		return exporter.Source{}, fmt.Errorf("parse %q: %w", in.Name, err)
	}
	return exporter.Source{Name: path.Base(in.Name), Path: in.Name, Metadata: md}, nil
}
