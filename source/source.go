// Package source produces metadata trees: from media files on disk
// (Probe, Walk, Load) or from a message queue (SQS).
package source

import (
	"context"
	"errors"
)

// Envelope is one raw record tree received from a queue. Payload is the
// JSON form of the tree; Name is the file name it describes.
type Envelope struct {
	Name    string
	Payload []byte
}

// Message is one unit received from a Sourcer.
type Message interface {
	Data() Envelope
	Fail(ctx context.Context, reason error) error
}

// Sourcer reads messages and acknowledges them in batches. Receive blocks
// until a message is available or ctx is done.
type Sourcer interface {
	Receive(ctx context.Context) (Message, error)
	AckBatch(ctx context.Context, msgs []Message) error
}

// VisibilityExtender can extend the lease of received messages, for
// exports that outlast the queue visibility timeout.
type VisibilityExtender interface {
	ExtendVisibilityBatch(ctx context.Context, metas []AckMetadata, timeoutSeconds int32) error
}

// AckMetadata is the source-specific handle of a received message.
type AckMetadata struct {
	ID     string
	Handle string
}

type ackMetable interface {
	AckMeta() (AckMetadata, bool)
}

type ackMetaBatcher interface {
	AckBatchMeta(ctx context.Context, metas []AckMetadata) error
}

// AckGroup collects the messages of one export batch. Commit prefers the
// AckBatchMeta fast path when every message exposes its AckMetadata.
type AckGroup struct {
	msgs  []Message
	metas []AckMetadata
}

func (g *AckGroup) Add(m Message) {
	g.msgs = append(g.msgs, m)
	if am, ok := m.(ackMetable); ok {
		if meta, ok := am.AckMeta(); ok {
			g.metas = append(g.metas, meta)
		}
	}
}

func (g *AckGroup) Len() int { return len(g.msgs) }

// Commit acknowledges the whole group against src.
func (g *AckGroup) Commit(ctx context.Context, src Sourcer) error {
	if len(g.msgs) == 0 {
		return nil
	}
	if fast, ok := src.(ackMetaBatcher); ok && len(g.metas) == len(g.msgs) {
		return fast.AckBatchMeta(ctx, g.metas)
	}
	return src.AckBatch(ctx, g.msgs)
}

// Metas returns the handles collected so far, for lease extension.
func (g *AckGroup) Metas() []AckMetadata { return g.metas }

// Reset empties the group, keeping its capacity.
func (g *AckGroup) Reset() {
	clear(g.msgs)
	g.msgs = g.msgs[:0]
	g.metas = g.metas[:0]
}

// Fail reports reason on every message of the group.
func (g *AckGroup) Fail(ctx context.Context, reason error) error {
	var errs []error
	for _, m := range g.msgs {
		if err := m.Fail(ctx, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
