package ingestor

import (
	"errors"
	"time"

	"github.com/baldanca/metadata-export/exporter"
	"github.com/baldanca/metadata-export/source"
)

type Config struct {
	// MaxItems flushes once this many sources are collected.
	MaxItems int
	// MaxBufferBytes flushes once the queued payloads reach this size.
	MaxBufferBytes int64
	// FlushInterval flushes a batch this long after its first item.
	FlushInterval time.Duration
	// StopTimeout bounds the final flush on shutdown.
	StopTimeout time.Duration
}

var DefaultConfig = Config{
	MaxItems:       100,
	MaxBufferBytes: 16 * 1024 * 1024,
	FlushInterval:  30 * time.Second,
	StopTimeout:    time.Minute,
}

func (c Config) Validate() error {
	if c.MaxItems <= 0 {
		return errors.New("MaxItems must be > 0")
	}
	if c.MaxBufferBytes <= 0 {
		return errors.New("MaxBufferBytes must be > 0")
	}
	if c.FlushInterval <= 0 {
		return errors.New("FlushInterval must be > 0")
	}
	if c.StopTimeout <= 0 {
		return errors.New("StopTimeout must be > 0")
	}
	return nil
}

// collector accumulates parsed sources and their messages until a size,
// count or age limit is reached.
type collector struct {
	cfg Config

	items []exporter.Source
	bytes int64
	acks  source.AckGroup

	deadline time.Time
	active   bool
}

func (c *collector) add(now time.Time, src exporter.Source, msg source.Message, size int64) (flushNow bool) {
	if !c.active {
		c.active = true
		c.deadline = now.Add(c.cfg.FlushInterval)
	}
	c.items = append(c.items, src)
	c.bytes += size
	c.acks.Add(msg)
	return len(c.items) >= c.cfg.MaxItems || c.bytes >= c.cfg.MaxBufferBytes
}

func (c *collector) dueAt() (time.Time, bool) {
	return c.deadline, c.active
}

type batch struct {
	items []exporter.Source
	acks  source.AckGroup
}

// take hands over the current batch and starts an empty one.
func (c *collector) take() batch {
	out := batch{items: c.items, acks: c.acks}
	c.items = nil
	c.bytes = 0
	c.acks = source.AckGroup{}
	c.active = false
	c.deadline = time.Time{}
	return out
}
