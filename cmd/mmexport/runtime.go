package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/baldanca/metadata-export/batcher"
	"github.com/baldanca/metadata-export/exporter"
	"github.com/baldanca/metadata-export/history"
	"github.com/baldanca/metadata-export/metrics"
	"github.com/baldanca/metadata-export/settings"
	"github.com/baldanca/metadata-export/sink"
)

// runtime holds what every export command shares: settings, the delivery
// sink, the ledger and the metrics registry.
type runtime struct {
	settings settings.Settings
	sink     sink.Sinkr
	ledger   *history.Ledger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func newRuntime(ctx context.Context) (*runtime, error) {
	st, err := settings.Load(viper.GetString("settings"))
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		settings: st,
		registry: prometheus.NewRegistry(),
		logger:   slog.Default().With("component", "cli"),
	}
	rt.metrics = metrics.New(rt.registry)

	if rt.sink, err = newSink(ctx); err != nil {
		return nil, err
	}
	if path := viper.GetString("history_db"); path != "" {
		if rt.ledger, err = history.Open(path); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func newSink(ctx context.Context) (sink.Sinkr, error) {
	if bucket := viper.GetString("s3_bucket"); bucket != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return sink.NewS3(s3.NewFromConfig(cfg), bucket, viper.GetString("s3_prefix"))
	}
	return sink.NewDir(viper.GetString("out"))
}

func (rt *runtime) retryPolicy() batcher.RetryPolicy {
	n := viper.GetInt("retries")
	if n <= 1 {
		return batcher.NoRetry{}
	}
	p := batcher.DefaultRetry
	p.Attempts = n
	return p
}

func (rt *runtime) exporter() (*exporter.Exporter, error) {
	e, err := exporter.New(rt.sink)
	if err != nil {
		return nil, err
	}
	e.SetRetryPolicy(rt.retryPolicy())
	e.SetMetrics(rt.metrics)
	e.SetClipboard(sink.NewClipboard())
	if rt.ledger != nil {
		e.SetLedger(rt.ledger)
	}
	return e, nil
}

func (rt *runtime) Close() {
	if rt.ledger != nil {
		if err := rt.ledger.Close(); err != nil {
			rt.logger.Warn("close history", "error", err)
		}
	}
	if path := viper.GetString("metrics_textfile"); path != "" {
		if err := metrics.WriteTextfile(path, rt.registry); err != nil {
			rt.logger.Warn("write metrics", "path", path, "error", err)
		}
	}
}

func printReport(rep exporter.Report, elapsed time.Duration) {
	if rep.Archive != "" {
		fmt.Printf("archive %s (%d entries)\n", rep.Archive, len(rep.Delivered))
	} else {
		for _, name := range rep.Delivered {
			fmt.Println(name)
		}
	}
	for _, f := range rep.Failures {
		fmt.Printf("FAILED %s: %v\n", f.Name, f.Err)
	}
	slog.Debug("export finished", "session", rep.SessionID, "elapsed", elapsed)
}
