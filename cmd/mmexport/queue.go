package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baldanca/metadata-export/batcher"
	"github.com/baldanca/metadata-export/ingestor"
	"github.com/baldanca/metadata-export/settings"
	"github.com/baldanca/metadata-export/source"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Export metadata trees received from an SQS queue",
	Long: `Queue long-polls an SQS queue for JSON metadata trees (message attribute
"filename" names each tree), groups them into batches and runs "export all"
on every batch. Messages are deleted only after their batch is delivered.

The settings file is watched; edits apply to the next batch.`,
	RunE: runQueue,
}

func init() {
	f := queueCmd.Flags()
	f.String("queue-url", "", "SQS queue URL (required)")
	f.Int32("visibility", source.DefaultSQSConfig.VisibilityTO, "visibility timeout in seconds")
	f.Int("pollers", source.DefaultSQSConfig.Pollers, "concurrent receive loops")
	f.Int("batch-items", ingestor.DefaultConfig.MaxItems, "flush after this many messages")
	f.Int64("batch-bytes", ingestor.DefaultConfig.MaxBufferBytes, "flush after this many payload bytes")
	f.Duration("flush-interval", ingestor.DefaultConfig.FlushInterval, "flush a partial batch after this long")
	f.Duration("lease-every", 0, "extend visibility of in-flight batches this often (0 disables)")
	for _, name := range []string{"queue-url", "visibility", "pollers", "batch-items", "batch-bytes", "flush-interval", "lease-every"} {
		viper.BindPFlag(configKey(name), f.Lookup(name))
	}
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	queueURL := viper.GetString("queue_url")
	if queueURL == "" {
		return errors.New("--queue-url is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}

	sqsCfg := source.DefaultSQSConfig
	sqsCfg.VisibilityTO = viper.GetInt32("visibility")
	sqsCfg.Pollers = viper.GetInt("pollers")
	src, err := source.NewSQS(ctx, sqs.NewFromConfig(awsCfg), queueURL, sqsCfg)
	if err != nil {
		return err
	}
	defer src.Close()

	exp, err := rt.exporter()
	if err != nil {
		return err
	}

	cfg := ingestor.DefaultConfig
	cfg.MaxItems = viper.GetInt("batch_items")
	cfg.MaxBufferBytes = viper.GetInt64("batch_bytes")
	cfg.FlushInterval = viper.GetDuration("flush_interval")

	ing, err := ingestor.New(cfg, src, exp, rt.settings)
	if err != nil {
		return err
	}
	ing.SetAckRetryPolicy(batcher.DefaultRetry)
	if every := viper.GetDuration("lease_every"); every > 0 {
		ing.EnableLease(sqsCfg.VisibilityTO, every)
	}

	w := &settings.Watcher{Path: viper.GetString("settings")}
	go func() {
		err := w.Watch(ctx, func(st settings.Settings) {
			rt.logger.Info("settings reloaded")
			ing.SetSettings(st)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Warn("settings watcher stopped", "error", err)
		}
	}()

	rt.logger.Info("consuming", "queue", queueURL, "sink", viper.GetString("s3_bucket"))
	start := time.Now()
	err = ing.Run(ctx)
	rt.logger.Info("stopped", "uptime", time.Since(start).Round(time.Second))
	return err
}
