package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/detect"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/metrics"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
	"github.com/spf13/cobra"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print visibility KPIs, platform breakdown, competitor ranking and cited domains",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		cfg, err := configStore(db).Load(ctx)
		if err != nil {
			return err
		}
		results, err := selectResults(ctx, cmd, db)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results match. Run some queries first with 'aivis run'.")
			return nil
		}
		snaps, err := db.LoadAllSnapshots(ctx)
		if err != nil {
			return err
		}
		now := time.Now()
		baseline := metrics.BaselineFor(snaps, now)
		brand := cfg.Brand.Name

		kpis := metrics.ComputeKPIs(results, brand, detect.Competitors, baseline, now)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "%s\t\t\t\n", brand)
		for _, k := range []metrics.KPI{kpis.OverallVisibility, kpis.TotalMentions, kpis.AvgSentiment, kpis.CompetitorRank} {
			fmt.Fprintf(w, "%s\t%d\t%s\t\n", k.Label, k.Value, k.Description)
		}
		w.Flush()
		fmt.Println()

		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "PLATFORM\tVISIBILITY\tMENTIONS\tRESULTS\tCHANGE\t")
		for _, p := range metrics.PlatformBreakdown(results, baseline) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%+d\t\n", p.Platform, p.Visibility, p.Mentions, p.Total, p.Change)
		}
		w.Flush()
		fmt.Println()

		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "#\tNAME\tVISIBILITY\tMENTIONS\tGROWTH\t")
		for i, e := range metrics.Ranking(results, brand, detect.Competitors, baseline) {
			name := e.Name
			if e.IsUser {
				name += " *"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%+d\t\n", i+1, name, e.Visibility, e.Mentions, e.Growth)
		}
		w.Flush()

		top, _ := cmd.Flags().GetInt("domains")
		domains := metrics.CitedDomains(results)
		if top > 0 && len(domains) > 0 {
			if len(domains) > top {
				domains = domains[:top]
			}
			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "DOMAIN\tCITATIONS\tSHARE\t")
			for _, d := range domains {
				fmt.Fprintf(w, "%s\t%d\t%.2f%%\t\n", d.Domain, d.Count, d.Share)
			}
			w.Flush()
		}
		return nil
	},
}

// selectResults returns the results of --crawl (or of every crawl) narrowed
// by the category, intent, platform and mentioned flags.
func selectResults(ctx context.Context, cmd *cobra.Command, db *storage.DB) ([]model.QueryResult, error) {
	crawlID, _ := cmd.Flags().GetString("crawl")
	category, _ := cmd.Flags().GetString("category")
	intent, _ := cmd.Flags().GetString("intent")
	mentioned, _ := cmd.Flags().GetBool("mentioned")
	platform, _ := cmd.Flags().GetString("platform")

	f := metrics.Filter{Category: category, Intent: intent, MentionedOnly: mentioned}
	if platform != "" {
		p, err := model.ParsePlatform(platform)
		if err != nil {
			return nil, err
		}
		f.Platform = p
	}

	var results []model.QueryResult
	if crawlID == "" {
		all, err := db.GetAllResults(ctx)
		if err != nil {
			return nil, err
		}
		results = all
	} else {
		c, err := db.GetCrawlByID(ctx, crawlID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("crawl %s not found", crawlID)
		}
		results = c.Results
	}

	stored, err := db.ListQueries(ctx, storage.QueryFilter{})
	if err != nil {
		return nil, err
	}
	return metrics.FilterResults(results, stored, f), nil
}

func addResultFilterFlags(c *cobra.Command) {
	c.Flags().String("crawl", "", "Only use this crawl (default: every crawl)")
	c.Flags().String("category", "", "Only queries stored with this category id")
	c.Flags().String("intent", "", "Only queries stored with this intent id")
	c.Flags().StringP("platform", "p", "", "Only results from this platform")
	c.Flags().Bool("mentioned", false, "Only results that mention the brand")
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addResultFilterFlags(reportCmd)
	reportCmd.Flags().Int("domains", 10, "Number of cited domains to list (0 to skip)")
}
