package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/upload"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send a batch of queries to every configured AI platform",
	Long: `Runs every query through each configured platform in turn, saves the results as a crawl
and refreshes this week's snapshot. Queries come from a .txt/.csv file or from the stored query list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		stored, _ := cmd.Flags().GetBool("stored")
		if (file == "") == !stored {
			return fmt.Errorf("use exactly one of --file or --stored")
		}
		platforms, err := platformsFlag(cmd)
		if err != nil {
			return err
		}

		db, absPath, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		var queries []model.Query
		if file != "" {
			f, err := upload.ReadFile(file)
			if err != nil {
				return fmt.Errorf("could not read %s: %w", file, err)
			}
			queries = f.Queries()
		} else {
			category, _ := cmd.Flags().GetString("category")
			intent, _ := cmd.Flags().GetString("intent")
			queries, err = db.ListQueries(ctx, storage.QueryFilter{Category: category, Intent: intent})
			if err != nil {
				return err
			}
		}
		if len(queries) == 0 {
			return fmt.Errorf("no queries to process")
		}

		lock, err := utils.NewRunLock(absPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(ctx, utils.RunOwner(fmt.Sprintf("aivis run of %d queries", len(queries)))); err != nil {
			return err
		}
		defer lock.Unlock()

		proc := newProcessor(cmd, db, nil)
		batch, err := proc.ProcessQueries(ctx, queries, processor.Options{
			Platforms: platforms,
			OnProgress: func(done, total int) {
				utils.Log.Debugf("Progress: %d/%d", done, total)
			},
		})
		if batch != nil {
			printBatch(batch)
		}
		if err != nil {
			return err
		}
		return batch.Failure()
	},
}

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Send a single query and print what each platform answered",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platforms, err := platformsFlag(cmd)
		if err != nil {
			return err
		}
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		q := model.Query{ID: utils.NewID("query"), Text: strings.Join(args, " ")}
		pq, err := newProcessor(cmd, db, nil).ProcessQuery(ctx, q, processor.Options{Platforms: platforms})
		if err != nil {
			return err
		}
		if pq.Status == model.StatusError {
			return fmt.Errorf("%s", pq.Error)
		}

		full, _ := cmd.Flags().GetBool("full")
		for _, r := range pq.Results {
			fmt.Printf("== %s  mentioned=%s position=%s confidence=%.2f\n", r.Platform, yesNo(r.Mentioned), positionString(r.Position), r.Confidence)
			if r.Context != "" {
				fmt.Printf("   context: %s\n", oneLine(r.Context, 200))
			}
			if len(r.CompetitorMentions) > 0 {
				fmt.Printf("   competitors: %s\n", strings.Join(r.CompetitorMentions, ", "))
			}
			if len(r.URLs) > 0 {
				fmt.Printf("   urls: %s\n", strings.Join(r.URLs, " "))
			}
			if full {
				fmt.Println()
				fmt.Println(r.FullResponse)
			}
			fmt.Println()
		}
		return nil
	},
}

func printBatch(b *processor.Batch) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "QUERY\tSTATUS\tRESULTS\tMENTIONED\t")
	for _, q := range b.Queries {
		mentioned := 0
		for _, r := range q.Results {
			if r.Mentioned {
				mentioned++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t\n", oneLine(q.Text, 60), q.Status, len(q.Results), mentioned)
	}
	w.Flush()

	if b.CrawlID != "" {
		fmt.Printf("\nSaved crawl %s (%d results)\n", b.CrawlID, len(b.Results()))
	}
	if b.Snapshot != nil {
		fmt.Printf("Week %s: visibility %d, mentions %d, rank #%d\n",
			b.Snapshot.Week, b.Snapshot.Metrics.OverallVisibility, b.Snapshot.Metrics.TotalMentions, b.Snapshot.Metrics.CompetitorRank)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)

	runCmd.Flags().StringP("file", "f", "", "Query file to run (.txt or .csv)")
	runCmd.Flags().Bool("stored", false, "Run the stored query list")
	runCmd.Flags().String("category", "", "With --stored, only run queries with this category id")
	runCmd.Flags().String("intent", "", "With --stored, only run queries with this intent id")
	runCmd.Flags().StringP("platform", "p", "", "Comma separated platforms to use instead of every configured one")

	askCmd.Flags().StringP("platform", "p", "", "Comma separated platforms to use instead of every configured one")
	askCmd.Flags().Bool("full", false, "Print the full answers")
}
