package ingestor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baldanca/metadata-export/batcher"
	"github.com/baldanca/metadata-export/exporter"
	"github.com/baldanca/metadata-export/settings"
	"github.com/baldanca/metadata-export/sink"
	"github.com/baldanca/metadata-export/source"
	"github.com/baldanca/metadata-export/transformer"
)

// ---- fakes ----

type tMsg struct {
	env       source.Envelope
	failCalls int32
}

func (m *tMsg) Data() source.Envelope { return m.env }
func (m *tMsg) Fail(context.Context, error) error {
	atomic.AddInt32(&m.failCalls, 1)
	return nil
}

func msg(name, body string) *tMsg {
	return &tMsg{env: source.Envelope{Name: name, Payload: []byte(body)}}
}

type tSource struct {
	recvCh   chan source.Message
	closed   chan struct{}
	ackCalls int32
	ackFails int32
	acked    int32
}

func newTSource() *tSource {
	return &tSource{recvCh: make(chan source.Message, 64), closed: make(chan struct{})}
}

func (s *tSource) Receive(ctx context.Context) (source.Message, error) {
	// drain queued messages before reporting the source closed
	select {
	case m := <-s.recvCh:
		return m, nil
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-s.recvCh:
		return m, nil
	case <-s.closed:
		return nil, source.ErrClosed
	}
}

func (s *tSource) AckBatch(_ context.Context, msgs []source.Message) error {
	atomic.AddInt32(&s.ackCalls, 1)
	if atomic.LoadInt32(&s.ackFails) > 0 {
		atomic.AddInt32(&s.ackFails, -1)
		return errors.New("ack fail")
	}
	atomic.AddInt32(&s.acked, int32(len(msgs)))
	return nil
}

type leasingSource struct {
	*tSource
	extends int32
}

func (s *leasingSource) ExtendVisibilityBatch(context.Context, []source.AckMetadata, int32) error {
	atomic.AddInt32(&s.extends, 1)
	return nil
}

type tExporter struct {
	mu       sync.Mutex
	calls    [][]string
	settings []settings.Settings
	err      error
	report   exporter.Report
	delay    time.Duration
}

func (e *tExporter) ExportAll(ctx context.Context, st settings.Settings, srcs []exporter.Source) (exporter.Report, error) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.Name
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, names)
	e.settings = append(e.settings, st)
	return e.report, e.err
}

func (e *tExporter) batches() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.calls...)
}

func newTestIngestor(t *testing.T, cfg Config, src source.Sourcer, exp Exporter) *Ingestor {
	t.Helper()
	i, err := New(cfg, src, exp, settings.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return i
}

func testCfg() Config {
	cfg := DefaultConfig
	cfg.MaxItems = 2
	cfg.FlushInterval = time.Hour
	cfg.StopTimeout = time.Second
	return cfg
}

// ---- tests ----

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	bad := DefaultConfig
	bad.MaxItems = 0
	if bad.Validate() == nil {
		t.Fatalf("expected error for MaxItems=0")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(DefaultConfig, nil, &tExporter{}, settings.Default()); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := New(DefaultConfig, newTSource(), nil, settings.Default()); err == nil {
		t.Fatalf("expected error for nil exporter")
	}
	st := settings.Default()
	st.TableFormat = "xml"
	if _, err := New(DefaultConfig, newTSource(), &tExporter{}, st); err == nil {
		t.Fatalf("expected settings validation error")
	}
}

func TestRun_FlushesOnMaxItemsAndAcks(t *testing.T) {
	src := newTSource()
	exp := &tExporter{}
	ing := newTestIngestor(t, testCfg(), src, exp)

	src.recvCh <- msg("a.mp3", `{"common":{"title":"A"}}`)
	src.recvCh <- msg("b.mp3", `{"common":{"title":"B"}}`)
	src.recvCh <- msg("c.mp3", `{"common":{"title":"C"}}`)
	close(src.closed)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := exp.batches()
	if len(got) != 2 || fmt.Sprint(got) != "[[a.mp3 b.mp3] [c.mp3]]" {
		t.Fatalf("batches = %v", got)
	}
	if atomic.LoadInt32(&src.acked) != 3 {
		t.Fatalf("acked = %d", src.acked)
	}
}

func TestRun_InvalidJSONIsFailedAndSkipped(t *testing.T) {
	src := newTSource()
	exp := &tExporter{}
	ing := newTestIngestor(t, testCfg(), src, exp)

	bad := msg("bad.mp3", `{not json`)
	src.recvCh <- bad
	src.recvCh <- msg("ok.mp3", `{}`)
	close(src.closed)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt32(&bad.failCalls) != 1 {
		t.Fatalf("bad message not failed")
	}
	if got := exp.batches(); fmt.Sprint(got) != "[[ok.mp3]]" {
		t.Fatalf("batches = %v", got)
	}
}

func TestRun_CustomTransformer(t *testing.T) {
	src := newTSource()
	exp := &tExporter{}
	ing := newTestIngestor(t, testCfg(), src, exp)
	ing.SetTransformer(transformer.Func(func(_ context.Context, in source.Envelope) (exporter.Source, error) {
		return exporter.Source{Name: "x-" + in.Name}, nil
	}))

	src.recvCh <- msg("a", `not json at all`)
	close(src.closed)
	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := exp.batches(); fmt.Sprint(got) != "[[x-a]]" {
		t.Fatalf("batches = %v", got)
	}
}

func TestRun_FlushesOnInterval(t *testing.T) {
	src := newTSource()
	exp := &tExporter{}
	cfg := testCfg()
	cfg.MaxItems = 100
	cfg.FlushInterval = 50 * time.Millisecond
	ing := newTestIngestor(t, cfg, src, exp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	src.recvCh <- msg("a.mp3", `{}`)

	deadline := time.Now().Add(2 * time.Second)
	for len(exp.batches()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("interval flush did not happen")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_FlushesPendingOnCancel(t *testing.T) {
	src := newTSource()
	exp := &tExporter{}
	cfg := testCfg()
	cfg.MaxItems = 100
	ing := newTestIngestor(t, cfg, src, exp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	src.recvCh <- msg("a.mp3", `{}`)
	for len(src.recvCh) > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := exp.batches(); fmt.Sprint(got) != "[[a.mp3]]" {
		t.Fatalf("batches = %v", got)
	}
}

func TestRun_ExportErrorFailsBatchAndStops(t *testing.T) {
	src := newTSource()
	exp := &tExporter{err: &batcher.ArchiveInitError{Err: errors.New("bad level")}}
	ing := newTestIngestor(t, testCfg(), src, exp)

	a, b := msg("a", `{}`), msg("b", `{}`)
	src.recvCh <- a
	src.recvCh <- b

	err := ing.Run(context.Background())
	var initErr *batcher.ArchiveInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("err = %v", err)
	}
	if a.failCalls != 1 || b.failCalls != 1 {
		t.Fatalf("fail calls a=%d b=%d", a.failCalls, b.failCalls)
	}
	if src.ackCalls != 0 {
		t.Fatalf("batch acknowledged after failed export")
	}
}

func TestRun_PartialFailureLeavesBatchQueued(t *testing.T) {
	src := newTSource()
	exp := &tExporter{report: exporter.Report{Failures: []exporter.Failure{{Name: "a.json", Err: errors.New("disk full")}}}}
	ing := newTestIngestor(t, testCfg(), src, exp)

	a := msg("a", `{}`)
	src.recvCh <- a
	close(src.closed)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.failCalls != 1 || src.ackCalls != 0 {
		t.Fatalf("fail=%d ack=%d", a.failCalls, src.ackCalls)
	}
}

func TestRun_AckIsRetried(t *testing.T) {
	src := newTSource()
	src.ackFails = 2
	ing := newTestIngestor(t, testCfg(), src, &tExporter{})
	ing.SetAckRetryPolicy(batcher.SimpleRetry{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	src.recvCh <- msg("a", `{}`)
	close(src.closed)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if src.ackCalls != 3 || src.acked != 1 {
		t.Fatalf("ackCalls=%d acked=%d", src.ackCalls, src.acked)
	}
}

func TestSetSettings_AppliesToNextFlush(t *testing.T) {
	src := newTSource()
	exp := &tExporter{}
	ing := newTestIngestor(t, testCfg(), src, exp)

	st := settings.Default()
	st.MultipleExportType = settings.Archive
	ing.SetSettings(st)
	if ing.Settings().MultipleExportType != settings.Archive {
		t.Fatalf("settings not swapped")
	}

	src.recvCh <- msg("a", `{}`)
	close(src.closed)
	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exp.settings[0].MultipleExportType != settings.Archive {
		t.Fatalf("export used %v", exp.settings[0].MultipleExportType)
	}
}

func TestRun_LeaseExtendedDuringSlowExport(t *testing.T) {
	ls := &leasingSource{tSource: newTSource()}
	exp := &tExporter{delay: 80 * time.Millisecond}
	ing := newTestIngestor(t, testCfg(), ls, exp)
	ing.EnableLease(60, 10*time.Millisecond)

	m := &leasedMsg{tMsg: msg("a", `{}`)}
	ls.recvCh <- m
	close(ls.closed)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt32(&ls.extends) == 0 {
		t.Fatalf("lease was never extended")
	}
}

type leasedMsg struct{ *tMsg }

func (m *leasedMsg) AckMeta() (source.AckMetadata, bool) {
	return source.AckMetadata{ID: m.env.Name, Handle: "rh-" + m.env.Name}, true
}

func TestRun_WithRealExporter(t *testing.T) {
	src := newTSource()
	mem := sink.NewMemory()
	exp, err := exporter.New(mem)
	if err != nil {
		t.Fatalf("exporter.New: %v", err)
	}
	ing := newTestIngestor(t, testCfg(), src, exp)

	src.recvCh <- msg("a.mp3", `{"common":{"title":"A"}}`)
	src.recvCh <- msg("b.mp3", `{"common":{"title":"B"}}`)
	close(src.closed)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	keys := mem.Keys()
	if len(keys) != 1 || keys[0] != "a.mp3.json" {
		t.Fatalf("keys = %v", keys)
	}
	if src.acked != 2 {
		t.Fatalf("acked = %d", src.acked)
	}
}
