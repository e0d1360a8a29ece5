// Package exporter runs the user-facing export flows: one selected file,
// every loaded file, or a single value.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/baldanca/metadata-export/batcher"
	"github.com/baldanca/metadata-export/encoder"
	"github.com/baldanca/metadata-export/metrics"
	"github.com/baldanca/metadata-export/record"
	"github.com/baldanca/metadata-export/settings"
	"github.com/baldanca/metadata-export/sink"
)

var (
	ErrNothingToExport = errors.New("nothing to export")
	ErrNoClipboard     = errors.New("no clipboard configured")
)

// Source is one parsed media file.
type Source struct {
	// Name is the base file name ("song.mp3").
	Name string
	// Path is the slash-separated path the file was loaded from, relative
	// to the chosen root ("Music/Album/song.mp3").
	Path     string
	Metadata *record.Record
}

// Failure is an output that could not be produced or delivered.
type Failure struct {
	Name string
	Err  error
}

// Report summarizes one export run.
type Report struct {
	SessionID string
	// Delivered lists output names in delivery order. In archive mode
	// they are archive entries.
	Delivered []string
	Archive   string
	Failures  []Failure
}

// Err joins the per-output failures, or nil.
func (r Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s: %w", f.Name, f.Err)
	}
	return errors.Join(errs...)
}

type Exporter struct {
	sink      sink.Sinkr
	clipboard sink.Sinkr
	prefix    string
	retry     batcher.RetryPolicy
	logger    *slog.Logger
	metrics   *metrics.Metrics
	ledger    batcher.Recorder
}

func New(s sink.Sinkr) (*Exporter, error) {
	if s == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	return &Exporter{
		sink:   s,
		prefix: batcher.DefaultArchivePrefix,
		retry:  batcher.NoRetry{},
		logger: slog.Default().With("component", "exporter"),
	}, nil
}

func (e *Exporter) SetRetryPolicy(p batcher.RetryPolicy) {
	if p == nil {
		p = batcher.NoRetry{}
	}
	e.retry = p
}

func (e *Exporter) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

func (e *Exporter) SetMetrics(m *metrics.Metrics) { e.metrics = m }

func (e *Exporter) SetLedger(r batcher.Recorder) { e.ledger = r }

// SetClipboard sets the sink used by CellCopy.
func (e *Exporter) SetClipboard(s sink.Sinkr) { e.clipboard = s }

func (e *Exporter) SetArchivePrefix(prefix string) { e.prefix = prefix }

func (e *Exporter) newBatcher(s sink.Sinkr, st settings.Settings) (*batcher.Batcher, error) {
	b, err := batcher.New(s, batcher.Config{ArchivePrefix: e.prefix, CompressionLevel: st.CompressionLevel})
	if err != nil {
		return nil, err
	}
	b.SetRetryPolicy(e.retry)
	b.SetLogger(e.logger)
	b.SetMetrics(e.metrics)
	b.SetLedger(e.ledger)
	return b, nil
}

// session wraps one batcher run and fills the report as items go out.
type session struct {
	b      *batcher.Batcher
	report Report
}

func (s *session) add(ctx context.Context, it batcher.Item) {
	if err := s.b.Add(ctx, it); err != nil {
		s.report.Failures = append(s.report.Failures, Failure{Name: it.Name, Err: err})
		return
	}
	s.report.Delivered = append(s.report.Delivered, it.Name)
}

func (s *session) fail(name string, err error) {
	s.report.Failures = append(s.report.Failures, Failure{Name: name, Err: err})
}

func (e *Exporter) open(ctx context.Context, s sink.Sinkr, st settings.Settings, archive bool) (*session, error) {
	b, err := e.newBatcher(s, st)
	if err != nil {
		return nil, err
	}
	if err := b.Open(ctx, archive); err != nil {
		return nil, err
	}
	return &session{b: b, report: Report{SessionID: b.SessionID()}}, nil
}

func (e *Exporter) release(ctx context.Context, s *session) (Report, error) {
	archive := s.b.Archiving()
	if err := s.b.Release(ctx); err != nil {
		return s.report, err
	}
	if archive {
		s.report.Archive = s.b.ArchiveName()
	}
	return s.report, nil
}

// ExportSelected exports one source. Mode Archive bundles the output (and
// its album art) into a zip; any other mode delivers the files directly.
func (e *Exporter) ExportSelected(ctx context.Context, st settings.Settings, src Source) (Report, error) {
	if src.Metadata == nil {
		return Report{}, ErrNothingToExport
	}
	enc := encoder.ForSettings(st)
	e.metrics.ExportStarted(formatName(enc), "selected")

	s, err := e.open(ctx, e.sink, st, st.MultipleExportType == settings.Archive)
	if err != nil {
		return Report{}, err
	}
	e.addSource(ctx, s, enc, st, src)
	return e.release(ctx, s)
}

// ExportAll exports every source according to st.MultipleExportType:
// MergeAll renders all metadata into one file named after the first
// source (album art is not exported); Individual and Archive produce one
// file per source followed by that source's album art.
func (e *Exporter) ExportAll(ctx context.Context, st settings.Settings, srcs []Source) (Report, error) {
	if len(srcs) == 0 {
		return Report{}, ErrNothingToExport
	}
	enc := encoder.ForSettings(st)
	e.metrics.ExportStarted(formatName(enc), st.MultipleExportType.String())

	s, err := e.open(ctx, e.sink, st, st.MultipleExportType == settings.Archive)
	if err != nil {
		return Report{}, err
	}

	if st.MultipleExportType == settings.MergeAll {
		items := make([]record.Value, 0, len(srcs))
		for _, src := range srcs {
			if src.Metadata != nil {
				items = append(items, WithFilename(src))
			}
		}
		name := srcs[0].Name + enc.FileExtension()
		if data, err := e.encode(ctx, enc, encoder.Collection(items...)); err != nil {
			s.fail(name, err)
		} else {
			s.add(ctx, batcher.Item{Payload: data, Name: name, ContentType: enc.ContentType()})
		}
		return e.release(ctx, s)
	}

	for _, src := range srcs {
		e.addSource(ctx, s, enc, st, src)
	}
	return e.release(ctx, s)
}

func (e *Exporter) addSource(ctx context.Context, s *session, enc encoder.Encoder, st settings.Settings, src Source) {
	name := src.Name + enc.FileExtension()
	if src.Metadata == nil {
		s.fail(name, ErrNothingToExport)
		return
	}
	data, err := e.encode(ctx, enc, encoder.Single(WithFilename(src)))
	if err != nil {
		s.fail(name, err)
	} else {
		s.add(ctx, batcher.Item{Payload: data, Name: name, ContentType: enc.ContentType()})
	}
	if st.DownloadAlbumArt {
		for _, art := range AlbumArt(src) {
			s.add(ctx, art)
		}
	}
}

// ExportValue exports a single value per st.CellAction: nothing, a
// download, or a copy to the clipboard. Scalars render as plain text,
// other values follow the record format of st. The output is named after
// sourceName without its extension.
func (e *Exporter) ExportValue(ctx context.Context, st settings.Settings, v record.Value, sourceName string) (Report, error) {
	if st.CellAction == settings.CellNone {
		return Report{}, nil
	}
	enc := encoder.ForValue(v, st)
	e.metrics.ExportStarted(formatName(enc), "cell-"+st.CellAction.String())

	name := trimExt(sourceName) + enc.FileExtension()
	data, err := e.encode(ctx, enc, encoder.Single(v))
	if err != nil {
		return Report{}, fmt.Errorf("encode %q: %w", name, err)
	}

	target := e.sink
	if st.CellAction == settings.CellCopy {
		if e.clipboard == nil {
			return Report{}, ErrNoClipboard
		}
		target = e.clipboard
	}
	s, err := e.open(ctx, target, st, false)
	if err != nil {
		return Report{}, err
	}
	s.add(ctx, batcher.Item{Payload: data, Name: name, ContentType: enc.ContentType()})
	return e.release(ctx, s)
}

func (e *Exporter) encode(ctx context.Context, enc encoder.Encoder, b encoder.Batch) ([]byte, error) {
	start := time.Now()
	data, err := enc.Encode(ctx, b)
	e.metrics.ObserveEncode(formatName(enc), time.Since(start))
	return data, err
}

func formatName(enc encoder.Encoder) string {
	return strings.TrimPrefix(enc.FileExtension(), ".")
}

// trimExt drops everything from the last "." of the base name; a name
// without one is kept whole.
func trimExt(name string) string {
	base := path.Base(name)
	if i := strings.LastIndex(base, "."); i > 0 {
		return strings.TrimSuffix(name, base[i:])
	}
	return name
}
