package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/baldanca/metadata-export/exporter"
	"github.com/baldanca/metadata-export/source"
)

var (
	exportSelected   int
	exportHidden     bool
	exportExtensions []string
	exportIgnoreFile string
)

var exportCmd = &cobra.Command{
	Use:   "export PATH...",
	Short: "Export the metadata of media files",
	Long: `Export reads the tags of every file under PATH and exports them according to
the persisted settings: merged into one file, one file per source, or zipped.

With --selected N only the N-th file (0-based, in listing order) is exported,
with its album art when downloadAlbumArt is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.IntVar(&exportSelected, "selected", -1, "export only the file at this index")
	f.BoolVar(&exportHidden, "hidden", false, "include dot files")
	f.StringSliceVar(&exportExtensions, "ext", nil, "only files with these extensions (e.g. .mp3,.flac)")
	f.StringVar(&exportIgnoreFile, "ignore-file", source.DefaultIgnoreFile, "gitignore-style file read from each root")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var files []source.File
	for _, root := range args {
		found, err := source.Walk(root, source.WalkOptions{
			IgnoreFile: exportIgnoreFile,
			Hidden:     exportHidden,
			Extensions: exportExtensions,
		})
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	rt.logger.Debug("files listed", "count", len(files))

	srcs, err := source.Load(ctx, files, rt.logger)
	if err != nil {
		return err
	}

	exp, err := rt.exporter()
	if err != nil {
		return err
	}

	start := time.Now()
	var rep exporter.Report
	if exportSelected >= 0 {
		if exportSelected >= len(srcs) {
			return fmt.Errorf("--selected %d out of range: %d sources loaded", exportSelected, len(srcs))
		}
		rep, err = exp.ExportSelected(ctx, rt.settings, srcs[exportSelected])
	} else {
		rep, err = exp.ExportAll(ctx, rt.settings, srcs)
	}
	if err != nil {
		return err
	}
	printReport(rep, time.Since(start))
	return rep.Err()
}
