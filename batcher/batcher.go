// Package batcher delivers a run of export files, either one sink write
// per file paced by DownloadPause, or bundled into a single zip archive
// written once on Release.
//
// A Batcher is one session: Open, any number of Add, Release. It is not
// reusable after Release. Calls are serialized; delivery is strictly
// sequential.
package batcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/baldanca/metadata-export/history"
	"github.com/baldanca/metadata-export/metrics"
	"github.com/baldanca/metadata-export/sink"
)

// DownloadPause is waited after every non-archive delivery, successful or
// not, so consecutive saves are not throttled by the receiving side.
const DownloadPause = 200 * time.Millisecond

// DefaultArchivePrefix names released archives: prefix + session id + ".zip".
const DefaultArchivePrefix = "MediaMetadataRead-"

var (
	ErrSessionOpen = errors.New("batcher: session already open")
	ErrNoSession   = errors.New("batcher: no open session")
	ErrReleased    = errors.New("batcher: session already released")
	ErrEmptyName   = errors.New("batcher: item name is empty")
)

// ArchiveInitError means the archive writer could not be set up. The
// whole batch is aborted.
type ArchiveInitError struct {
	Err error
}

func (e *ArchiveInitError) Error() string { return "init archive: " + e.Err.Error() }
func (e *ArchiveInitError) Unwrap() error { return e.Err }

// ItemError is the failure of one Add. The session stays usable.
type ItemError struct {
	Name string
	Err  error
}

func (e *ItemError) Error() string { return fmt.Sprintf("deliver %q: %v", e.Name, e.Err) }
func (e *ItemError) Unwrap() error { return e.Err }

// Item is one named payload.
type Item struct {
	Payload     []byte
	Name        string
	ContentType string
}

// Recorder receives one entry per delivery attempt.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

type Config struct {
	ArchivePrefix string
	// CompressionLevel is the deflate level of archive entries, from
	// flate.HuffmanOnly (-2) to flate.BestCompression (9).
	CompressionLevel int
}

var DefaultConfig = Config{
	ArchivePrefix:    DefaultArchivePrefix,
	CompressionLevel: flate.DefaultCompression,
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ArchivePrefix) == "" {
		return errors.New("ArchivePrefix must not be empty")
	}
	return nil
}

type state int

const (
	idle state = iota
	open
	released
)

type Batcher struct {
	mu sync.Mutex

	cfg     Config
	sink    sink.Sinkr
	target  string
	retry   RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Metrics
	ledger  Recorder

	state     state
	sessionID string
	buf       *bytes.Buffer
	zw        *zip.Writer
	entries   int
}

func New(s sink.Sinkr, cfg Config) (*Batcher, error) {
	if s == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Batcher{
		cfg:    cfg,
		sink:   s,
		target: sink.TargetOf(s),
		retry:  NoRetry{},
		logger: slog.Default().With("component", "batcher"),
	}, nil
}

// NewDefault is New with DefaultConfig.
func NewDefault(s sink.Sinkr) (*Batcher, error) { return New(s, DefaultConfig) }

func (b *Batcher) SetRetryPolicy(p RetryPolicy) {
	if p == nil {
		b.retry = NoRetry{}
		return
	}
	b.retry = p
}

func (b *Batcher) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

func (b *Batcher) SetMetrics(m *metrics.Metrics) { b.metrics = m }

func (b *Batcher) SetLedger(r Recorder) { b.ledger = r }

// SessionID is empty until Open succeeds.
func (b *Batcher) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// Archiving reports whether the open session bundles items into a zip.
func (b *Batcher) Archiving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.zw != nil
}

// ArchiveName is the key the archive is released under.
func (b *Batcher) ArchiveName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.archiveName()
}

func (b *Batcher) archiveName() string {
	return b.cfg.ArchivePrefix + b.sessionID + ".zip"
}

// Open starts the session. With useArchive, the zip writer is ready when
// Open returns; a failure to set it up is an *ArchiveInitError.
func (b *Batcher) Open(ctx context.Context, useArchive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case open:
		return ErrSessionOpen
	case released:
		return ErrReleased
	}

	if useArchive {
		if err := ctx.Err(); err != nil {
			return &ArchiveInitError{Err: err}
		}
		level := b.cfg.CompressionLevel
		// probe the level once so a bad one fails here, not on the first entry
		if _, err := flate.NewWriter(io.Discard, level); err != nil {
			return &ArchiveInitError{Err: err}
		}
		b.buf = &bytes.Buffer{}
		b.zw = zip.NewWriter(b.buf)
		b.zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, level)
		})
	} else if err := ctx.Err(); err != nil {
		return err
	}

	b.sessionID = uuid.NewString()
	b.state = open
	b.logger.Debug("session opened", "session", b.sessionID, "archive", useArchive, "target", b.target)
	return nil
}

// Add delivers one item, or appends it to the archive. In non-archive
// mode Add always waits DownloadPause before returning.
func (b *Batcher) Add(ctx context.Context, it Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case idle:
		return ErrNoSession
	case released:
		return ErrReleased
	}
	if it.Name == "" {
		return &ItemError{Err: ErrEmptyName}
	}

	if b.zw != nil {
		return b.addToArchive(ctx, it)
	}

	err := b.deliver(ctx, sink.WriteRequest{Key: it.Name, Data: it.Payload, ContentType: it.ContentType})
	time.Sleep(DownloadPause)
	if err != nil {
		return &ItemError{Name: it.Name, Err: err}
	}
	return nil
}

func (b *Batcher) addToArchive(ctx context.Context, it Item) error {
	w, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     it.Name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err == nil {
		_, err = w.Write(it.Payload)
	}
	b.record(ctx, history.Entry{Name: it.Name, ContentType: it.ContentType, Size: len(it.Payload), Archived: true}, err)
	if err != nil {
		return &ItemError{Name: it.Name, Err: err}
	}
	b.entries++
	return nil
}

// Release ends the session. In archive mode the zip is finalized and
// written to the sink exactly once; otherwise Release does nothing more.
func (b *Batcher) Release(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case idle:
		return ErrNoSession
	case released:
		return ErrReleased
	}
	b.state = released

	if b.zw == nil {
		b.logger.Debug("session released", "session", b.sessionID)
		return nil
	}

	zw, buf := b.zw, b.buf
	b.zw, b.buf = nil, nil

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	name := b.archiveName()
	if err := b.deliver(ctx, sink.WriteRequest{Key: name, Data: buf.Bytes(), ContentType: "application/zip"}); err != nil {
		return fmt.Errorf("release archive %q: %w", name, err)
	}
	b.metrics.ArchiveReleased()
	b.logger.Info("archive released", "session", b.sessionID, "name", name, "entries", b.entries, "bytes", buf.Len())
	return nil
}

func (b *Batcher) deliver(ctx context.Context, req sink.WriteRequest) error {
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		return b.sink.Write(ctx, req)
	})
	if err != nil {
		b.metrics.ItemFailed(b.target)
		b.logger.Warn("delivery failed", "session", b.sessionID, "name", req.Key, "target", b.target, "error", err)
	} else {
		b.metrics.ItemDelivered(b.target, len(req.Data))
	}
	b.record(ctx, history.Entry{Name: req.Key, ContentType: req.ContentType, Size: len(req.Data)}, err)
	return err
}

func (b *Batcher) record(ctx context.Context, e history.Entry, err error) {
	if b.ledger == nil {
		return
	}
	e.SessionID = b.sessionID
	e.Target = b.target
	if err != nil {
		e.Err = err.Error()
	}
	// ledger failures never fail a delivery
	if lerr := b.ledger.Record(context.WithoutCancel(ctx), e); lerr != nil {
		b.logger.Warn("history record failed", "name", e.Name, "error", lerr)
	}
}
