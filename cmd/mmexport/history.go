package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baldanca/metadata-export/history"
)

var (
	historyLimit   int
	historySession string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded deliveries",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "most recent entries to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "show one export session")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("history_db")
	if path == "" {
		return errors.New("--history-db is not set")
	}
	l, err := history.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	var entries []history.Entry
	if historySession != "" {
		entries, err = l.Session(cmd.Context(), historySession)
	} else {
		entries, err = l.Recent(cmd.Context(), historyLimit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tNAME\tTARGET\tSIZE\tSTATUS")
	for _, e := range entries {
		status := "ok"
		switch {
		case e.Err != "":
			status = "error: " + e.Err
		case e.Archived:
			status = "archived"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.At.Local().Format(time.DateTime), shortID(e.SessionID), e.Name, e.Target, e.Size, status)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
