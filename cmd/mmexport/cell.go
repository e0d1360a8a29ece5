package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baldanca/metadata-export/record"
	"github.com/baldanca/metadata-export/settings"
	"github.com/baldanca/metadata-export/source"
)

var cellAction string

var cellCmd = &cobra.Command{
	Use:   "cell FILE KEY",
	Short: "Export a single metadata value",
	Long: `Cell reads FILE's tags and exports the value at KEY, a dotted path such as
"common.picture.0" or "format.container". A KEY without a dot is looked up
under "common".

The cellAction setting (or --action) decides what happens: 1 downloads the
value next to --out, 2 copies it to the clipboard.`,
	Args: cobra.ExactArgs(2),
	RunE: runCell,
}

func init() {
	cellCmd.Flags().StringVar(&cellAction, "action", "", "override cellAction: none, download or copy")
	rootCmd.AddCommand(cellCmd)
}

func runCell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file, key := args[0], args[1]

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	st := rt.settings
	if cellAction != "" {
		if st.CellAction, err = parseCellAction(cellAction); err != nil {
			return err
		}
	}

	md, err := source.ProbeFile(file)
	if err != nil {
		return err
	}
	v, err := lookup(md, key)
	if err != nil {
		return err
	}

	exp, err := rt.exporter()
	if err != nil {
		return err
	}
	rep, err := exp.ExportValue(ctx, st, v, filepath.Base(file))
	if err != nil {
		return err
	}
	if st.CellAction == settings.CellNone {
		fmt.Println(record.Text(v))
		return nil
	}
	for _, name := range rep.Delivered {
		fmt.Printf("%s -> %s\n", key, name)
	}
	return rep.Err()
}

// lookup resolves a dotted path. Array and map segments are element
// indexes.
func lookup(md *record.Record, key string) (record.Value, error) {
	if !strings.Contains(key, ".") {
		key = "common." + key
	}
	var cur record.Value = md
	for _, part := range strings.Split(key, ".") {
		r, ok := record.AsRecord(cur)
		if !ok {
			return nil, fmt.Errorf("key %q: %q is a %s", key, part, cur.Kind())
		}
		if cur, ok = r.Get(part); !ok {
			return nil, fmt.Errorf("key %q: no %q", key, part)
		}
	}
	return cur, nil
}

func parseCellAction(s string) (settings.CellAction, error) {
	for _, a := range []settings.CellAction{settings.CellNone, settings.CellDownload, settings.CellCopy} {
		if strings.EqualFold(a.String(), s) {
			return a, nil
		}
	}
	return settings.CellNone, fmt.Errorf("unknown cell action %q", s)
}
