// Package ingestor turns a queue of metadata trees into exports: it
// collects parsed trees into batches, runs an "export all" per batch and
// acknowledges the messages once the export succeeded.
package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/baldanca/metadata-export/batcher"
	"github.com/baldanca/metadata-export/exporter"
	"github.com/baldanca/metadata-export/settings"
	"github.com/baldanca/metadata-export/source"
	"github.com/baldanca/metadata-export/transformer"
)

// Exporter is the export step of a flush. *exporter.Exporter implements it.
type Exporter interface {
	ExportAll(ctx context.Context, st settings.Settings, srcs []exporter.Source) (exporter.Report, error)
}

type Ingestor struct {
	cfg         Config
	source      source.Sourcer
	transformer transformer.Transformer
	exporter    Exporter
	settings    atomic.Pointer[settings.Settings]

	ackRetry batcher.RetryPolicy
	logger   *slog.Logger

	collector collector

	leaseEnabled    bool
	leaseTimeoutSec int32
	leaseRenewEvery time.Duration
}

func New(cfg Config, src source.Sourcer, exp Exporter, st settings.Settings) (*Ingestor, error) {
	if src == nil {
		return nil, fmt.Errorf("source is nil")
	}
	if exp == nil {
		return nil, fmt.Errorf("exporter is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := settings.Validate(st); err != nil {
		return nil, err
	}

	i := &Ingestor{
		cfg:         cfg,
		source:      src,
		transformer: transformer.JSONRecord{},
		exporter:    exp,
		ackRetry:    batcher.NoRetry{},
		logger:      slog.Default().With("component", "ingestor"),
		collector:   collector{cfg: cfg},
	}
	i.settings.Store(&st)
	return i, nil
}

// SetSettings replaces the settings used by the next flush. It is safe to
// call while Run is active.
func (i *Ingestor) SetSettings(st settings.Settings) {
	i.settings.Store(&st)
}

func (i *Ingestor) Settings() settings.Settings {
	return *i.settings.Load()
}

// SetTransformer replaces the default JSON record transformer.
func (i *Ingestor) SetTransformer(t transformer.Transformer) {
	if t != nil {
		i.transformer = t
	}
}

func (i *Ingestor) SetAckRetryPolicy(p batcher.RetryPolicy) {
	if p == nil {
		p = batcher.NoRetry{}
	}
	i.ackRetry = p
}

func (i *Ingestor) SetLogger(l *slog.Logger) {
	if l != nil {
		i.logger = l
	}
}

// EnableLease keeps the messages of a batch leased while it is exported,
// extending their visibility to timeoutSec every renewEvery. It only
// applies to sources implementing source.VisibilityExtender.
func (i *Ingestor) EnableLease(timeoutSec int32, renewEvery time.Duration) {
	i.leaseEnabled = true
	i.leaseTimeoutSec = timeoutSec
	i.leaseRenewEvery = renewEvery
}

// Run receives until ctx is done or the source closes, then flushes what
// is left. A failed export or acknowledgement stops the loop.
func (i *Ingestor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return i.flushOnStop(ctx)
		}

		recvCtx := ctx
		cancel := context.CancelFunc(func() {})
		if due, ok := i.collector.dueAt(); ok {
			recvCtx, cancel = context.WithDeadline(ctx, due)
		}
		msg, err := i.source.Receive(recvCtx)
		cancel()

		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
				if err := i.flush(ctx); err != nil {
					return err
				}
				continue
			case errors.Is(err, source.ErrClosed), errors.Is(err, context.Canceled), ctx.Err() != nil:
				return i.flushOnStop(ctx)
			}
			return fmt.Errorf("receive: %w", err)
		}

		if i.process(ctx, msg) {
			if err := i.flush(ctx); err != nil {
				return err
			}
		}
	}
}

func (i *Ingestor) process(ctx context.Context, msg source.Message) (flushNow bool) {
	env := msg.Data()
	src, err := i.transformer.Transform(ctx, env)
	if err != nil {
		i.logger.Warn("dropping unparsable message", "name", env.Name, "error", err)
		if ferr := msg.Fail(ctx, err); ferr != nil {
			i.logger.Warn("fail message", "name", env.Name, "error", ferr)
		}
		return false
	}
	return i.collector.add(time.Now(), src, msg, int64(len(env.Payload)))
}

func (i *Ingestor) flush(ctx context.Context) error {
	b := i.collector.take()
	if len(b.items) == 0 {
		return nil
	}

	exportCtx, stopLease, leaseErr := i.startLease(ctx, b.acks.Metas())
	rep, err := i.exporter.ExportAll(exportCtx, i.Settings(), b.items)
	stopLease()
	if lerr := leaseErr(); lerr != nil && err == nil {
		err = fmt.Errorf("extend lease: %w", lerr)
	}

	if err != nil {
		i.failAll(ctx, &b.acks, err)
		return fmt.Errorf("export %d sources: %w", len(b.items), err)
	}
	if ferr := rep.Err(); ferr != nil {
		// keep the messages queued so the whole batch is delivered again
		i.logger.Warn("export incomplete, batch left for redelivery",
			"session", rep.SessionID, "failures", len(rep.Failures), "error", ferr)
		i.failAll(ctx, &b.acks, ferr)
		return nil
	}

	if err := i.ackRetry.Do(ctx, func(ctx context.Context) error {
		return b.acks.Commit(ctx, i.source)
	}); err != nil {
		return fmt.Errorf("ack %d messages: %w", b.acks.Len(), err)
	}
	i.logger.Info("batch exported", "session", rep.SessionID, "sources", len(b.items),
		"delivered", len(rep.Delivered), "archive", rep.Archive)
	return nil
}

func (i *Ingestor) failAll(ctx context.Context, acks *source.AckGroup, reason error) {
	if err := acks.Fail(ctx, reason); err != nil {
		i.logger.Warn("fail messages", "error", err)
	}
}

// startLease renews the visibility of metas until stop is called. A failed
// renewal cancels the returned context; leaseErr reports it.
func (i *Ingestor) startLease(parent context.Context, metas []source.AckMetadata) (ctx context.Context, stop func(), leaseErr func() error) {
	ext, ok := i.source.(source.VisibilityExtender)
	if !i.leaseEnabled || !ok || len(metas) == 0 {
		return parent, func() {}, func() error { return nil }
	}

	renewEvery := i.leaseRenewEvery
	if renewEvery <= 0 {
		renewEvery = 20 * time.Second
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	var failed atomic.Value

	go func() {
		defer close(done)
		t := time.NewTicker(renewEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := ext.ExtendVisibilityBatch(ctx, metas, i.leaseTimeoutSec); err != nil {
					if ctx.Err() == nil {
						failed.Store(err)
						cancel()
					}
					return
				}
			}
		}
	}()

	stop = func() {
		cancel()
		<-done
	}
	leaseErr = func() error {
		if err, ok := failed.Load().(error); ok {
			return err
		}
		return nil
	}
	return ctx, stop, leaseErr
}

// flushOnStop exports the pending batch ignoring the cancellation of ctx,
// bounded by StopTimeout.
func (i *Ingestor) flushOnStop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.StopTimeout)
	defer cancel()
	return i.flush(stopCtx)
}
