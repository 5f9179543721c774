package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
	"github.com/spf13/cobra"
)

var crawlsCmd = &cobra.Command{
	Use:   "crawls",
	Short: "Inspect saved crawls",
}

var crawlsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crawls, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := db.CrawlSummaries(context.Background())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No crawls yet. Use 'aivis run' to create one.")
			return nil
		}
		printCrawlSummaries(summaries)
		return nil
	},
}

var crawlsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print the results of a crawl (default: the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		var c *model.Crawl
		if len(args) == 1 {
			c, err = db.GetCrawlByID(ctx, args[0])
		} else {
			c, err = db.GetLatestCrawl(ctx)
		}
		if err != nil {
			return err
		}
		if c == nil {
			return storage.ErrCrawlNotFound
		}

		fmt.Printf("Crawl %s (%s): %d queries, %d results\n\n", c.CrawlID, c.Date, c.Metadata.TotalQueries, len(c.Results))
		printResults(c.Results)
		return nil
	},
}

var crawlsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a crawl",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		err = db.DeleteCrawl(context.Background(), args[0])
		if errors.Is(err, storage.ErrCrawlNotFound) {
			return fmt.Errorf("crawl %s not found", args[0])
		}
		return err
	},
}

var crawlsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every crawl",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.ClearCrawls(context.Background())
	},
}

var crawlsRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "List crawls between two dates, or from the last N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		days, _ := cmd.Flags().GetInt("days")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		var crawls []model.Crawl
		if from == "" && to == "" {
			crawls, err = db.GetCrawlsLastNDays(ctx, days)
		} else {
			start, end, perr := dateRange(from, to)
			if perr != nil {
				return perr
			}
			crawls, err = db.GetCrawlsInRange(ctx, start, end)
		}
		if err != nil {
			return err
		}

		summaries := make([]model.CrawlSummary, 0, len(crawls))
		for _, c := range crawls {
			summaries = append(summaries, c.Summary())
		}
		if len(summaries) == 0 {
			fmt.Println("No crawls in range.")
			return nil
		}
		printCrawlSummaries(summaries)
		return nil
	},
}

// dateRange parses YYYY-MM-DD bounds. The end day is inclusive and an
// empty bound is open.
func dateRange(from, to string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().UTC()
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return start, end, fmt.Errorf("invalid --from date: %w", err)
		}
		start = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return start, end, fmt.Errorf("invalid --to date: %w", err)
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

func printCrawlSummaries(summaries []model.CrawlSummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CRAWL\tDATE\tRESULTS\tMENTIONED\tPLATFORMS\t")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\t\n", s.CrawlID, s.Timestamp.Local().Format("2006-01-02 15:04"), s.ResultCount, s.MentionedCount, s.Platforms)
	}
	w.Flush()
}

func printResults(results []model.QueryResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "QUERY\tPLATFORM\tMENTIONED\tPOSITION\tCONFIDENCE\tCOMPETITORS\t")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%d\t\n", oneLine(r.Query, 50), r.Platform, yesNo(r.Mentioned), positionString(r.Position), r.Confidence, len(r.CompetitorMentions))
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(crawlsCmd)
	crawlsCmd.AddCommand(crawlsListCmd, crawlsShowCmd, crawlsDeleteCmd, crawlsClearCmd, crawlsRangeCmd)

	crawlsRangeCmd.Flags().Int("days", 30, "Number of days back from now")
	crawlsRangeCmd.Flags().String("from", "", "Start date (YYYY-MM-DD)")
	crawlsRangeCmd.Flags().String("to", "", "End date, inclusive (YYYY-MM-DD)")
}
