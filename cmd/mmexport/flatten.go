package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/baldanca/metadata-export/encoder"
	"github.com/baldanca/metadata-export/flatten"
	"github.com/baldanca/metadata-export/record"
)

var (
	flattenPrefix     string
	flattenNoPivot    bool
	flattenKeepBinary bool
)

var flattenCmd = &cobra.Command{
	Use:   "flatten [FILE...]",
	Short: "Flatten JSON documents into one CSV table on stdout",
	Long: `Flatten reads JSON documents (stdin when no FILE is given) and writes a single
CSV table, one row per document, headed by the dotted paths of their leaves.`,
	RunE: runFlatten,
}

func init() {
	f := flattenCmd.Flags()
	f.StringVar(&flattenPrefix, "prefix", "", "prepend to every header")
	f.BoolVar(&flattenNoPivot, "no-pivot", false, "index top-level arrays instead of pivoting them")
	f.BoolVar(&flattenKeepBinary, "keep-binary", false, "keep binary payloads")
	rootCmd.AddCommand(flattenCmd)
}

func runFlatten(cmd *cobra.Command, args []string) error {
	var values []record.Value
	read := func(name string, r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		v, err := record.ParseJSON(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		values = append(values, v)
		return nil
	}

	if len(args) == 0 {
		if err := read("stdin", cmd.InOrStdin()); err != nil {
			return err
		}
	}
	for _, name := range args {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		err = read(name, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	t := flatten.FlattenValues(values, flatten.Options{
		Prefix:            flattenPrefix,
		DisableArrayPivot: flattenNoPivot,
		KeepBinary:        flattenKeepBinary,
	})
	return encoder.WriteCSV(cmd.OutOrStdout(), t)
}
