package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/upload"
	"github.com/spf13/cobra"
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Manage the stored query list",
}

var queriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		category, _ := cmd.Flags().GetString("category")
		intent, _ := cmd.Flags().GetString("intent")
		qs, err := db.ListQueries(context.Background(), storage.QueryFilter{Category: category, Intent: intent})
		if err != nil {
			return err
		}
		if len(qs) == 0 {
			fmt.Println("No stored queries.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tQUERY\tCATEGORY\tINTENT\t")
		for _, q := range qs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", q.ID, oneLine(q.Text, 70), q.Category, q.Intent)
		}
		w.Flush()
		return nil
	},
}

var queriesAddCmd = &cobra.Command{
	Use:   "add [query]",
	Short: "Store a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		category, _ := cmd.Flags().GetString("category")
		intent, _ := cmd.Flags().GetString("intent")
		q, err := db.AddQuery(context.Background(), model.Query{Text: strings.Join(args, " "), Category: category, Intent: intent})
		if err != nil {
			return err
		}
		fmt.Println(q.ID)
		return nil
	},
}

var queriesImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Store every query of a .txt or .csv file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := upload.ReadFile(args[0])
		if err != nil {
			return err
		}
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		category, _ := cmd.Flags().GetString("category")
		intent, _ := cmd.Flags().GetString("intent")
		qs := f.Queries()
		for i := range qs {
			if qs[i].Category == "" {
				qs[i].Category = category
			}
			if qs[i].Intent == "" {
				qs[i].Intent = intent
			}
		}
		added, err := db.ImportQueries(context.Background(), qs)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d queries from %s\n", len(added), args[0])
		return nil
	},
}

var queriesSetCmd = &cobra.Command{
	Use:   "set [id]",
	Short: "Change the text, category or intent of a stored query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		var u storage.QueryUpdate
		if cmd.Flags().Changed("text") {
			text, _ := cmd.Flags().GetString("text")
			u.Text = &text
		}
		if cmd.Flags().Changed("category") {
			category, _ := cmd.Flags().GetString("category")
			u.Category = &category
		}
		if cmd.Flags().Changed("intent") {
			intent, _ := cmd.Flags().GetString("intent")
			u.Intent = &intent
		}
		q, err := db.UpdateQuery(context.Background(), args[0], u)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("query %s not found", args[0])
		}
		return nil
	},
}

var queriesDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete stored queries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.DeleteQueries(context.Background(), args)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d of %d queries\n", n, len(args))
		return nil
	},
}

var queriesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored query, category and intent",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.ClearQueryData(context.Background())
	},
}

// labelCmd builds the list/add/delete tree for categories or intents.
func labelCmd(kind storage.LabelKind, use string) *cobra.Command {
	parent := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage query %s labels", kind),
	}
	parent.AddCommand(&cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s labels", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			labels, err := db.ListLabels(context.Background(), kind)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\t")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%s\t\n", l.ID, l.Name)
			}
			w.Flush()
			return nil
		},
	})
	parent.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: fmt.Sprintf("Add a %s label", kind),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			l, err := db.AddLabel(context.Background(), kind, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(l.ID)
			return nil
		},
	})
	parent.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: fmt.Sprintf("Delete a %s label and detach it from its queries", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			found, err := db.DeleteLabel(context.Background(), kind, args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s %s not found", kind, args[0])
			}
			return nil
		},
	})
	return parent
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesListCmd, queriesAddCmd, queriesImportCmd, queriesSetCmd, queriesDeleteCmd, queriesClearCmd)
	queriesCmd.AddCommand(labelCmd(storage.LabelCategory, "categories"), labelCmd(storage.LabelIntent, "intents"))

	for _, c := range []*cobra.Command{queriesListCmd, queriesAddCmd, queriesImportCmd, queriesSetCmd} {
		c.Flags().String("category", "", "Category label id")
		c.Flags().String("intent", "", "Intent label id")
	}
	queriesSetCmd.Flags().String("text", "", "New query text")
}
