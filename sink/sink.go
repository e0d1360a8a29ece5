// Package sink delivers finished export files to a destination.
package sink

import (
	"context"
)

type WriteRequest struct {
	Key         string
	Data        []byte
	ContentType string
}

type Sinkr interface {
	Write(ctx context.Context, req WriteRequest) error
}

// Targeted is implemented by sinks that name their destination kind
// ("dir", "s3", ...). The name labels delivery metrics and history rows.
type Targeted interface {
	Target() string
}

// TargetOf returns the destination kind of s, or "custom".
func TargetOf(s Sinkr) string {
	if t, ok := s.(Targeted); ok {
		return t.Target()
	}
	return "custom"
}
