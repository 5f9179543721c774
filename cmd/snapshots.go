package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/metrics"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect the weekly metric snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		weeks, _ := cmd.Flags().GetInt("weeks")
		snaps, err := db.GetLastNWeeks(context.Background(), weeks)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "WEEK\tDATE\tVISIBILITY\tMENTIONS\tSENTIMENT\tRANK\tQUERIES\t")
		for _, s := range snaps {
			m := s.Metrics
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t\n", s.Week, s.Date, m.OverallVisibility, m.TotalMentions, m.AvgSentiment, m.CompetitorRank, m.TotalQueries)
		}
		w.Flush()

		if len(snaps) > 1 {
			cmp := metrics.Compare(snaps[0], metrics.BaselineFor(snaps, snaps[0].Timestamp))
			fmt.Println()
			printComparison(cmp)
		}
		return nil
	},
}

var snapshotsTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print week-over-week visibility per platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		weeks, _ := cmd.Flags().GetInt("weeks")
		snaps, err := db.GetLastNWeeks(context.Background(), weeks)
		if err != nil {
			return err
		}
		t := metrics.TrendData(snaps, weeks)
		if len(t.Weeks) == 0 {
			fmt.Println("No snapshots yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprint(w, "WEEK\tOVERALL\t")
		for _, p := range model.AllPlatforms {
			fmt.Fprintf(w, "%s\t", p)
		}
		fmt.Fprintln(w, "RANK\t")
		for i, week := range t.Weeks {
			fmt.Fprintf(w, "%s\t%d\t", week, t.Visibility[i])
			for _, p := range model.AllPlatforms {
				fmt.Fprintf(w, "%d\t", t.PlatformVisibility[p][i])
			}
			fmt.Fprintf(w, "%d\t\n", t.Rank[i])
		}
		w.Flush()
		return nil
	},
}

var snapshotsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.ClearSnapshots(context.Background())
	},
}

func printComparison(cmp metrics.Comparison) {
	if !cmp.HasComparison {
		fmt.Println("No earlier week to compare with.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "METRIC\tNOW\tBEFORE\tCHANGE\tTREND\t")
	for _, row := range []struct {
		name string
		d    metrics.Delta
	}{
		{"Visibility", cmp.OverallVisibility},
		{"Mentions", cmp.TotalMentions},
		{"Sentiment", cmp.AvgSentiment},
		{"Rank", cmp.CompetitorRank},
	} {
		fmt.Fprintf(w, "%s\t%d\t%d\t%+d\t%s\t\n", row.name, row.d.Current, row.d.Previous, row.d.Change, row.d.Trend)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsTrendCmd, snapshotsClearCmd)

	snapshotsListCmd.Flags().Int("weeks", 12, "Number of weeks to show")
	snapshotsTrendCmd.Flags().Int("weeks", 12, "Number of weeks to show")
}
