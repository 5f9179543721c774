package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
	"github.com/spf13/cobra"
)

func TestDateRange_InclusiveEnd(t *testing.T) {
	start, end, err := dateRange("2024-04-01", "2024-04-07")
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if end.Before(time.Date(2024, 4, 7, 23, 59, 59, 0, time.UTC)) || !end.Before(time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v, want last instant of 2024-04-07", end)
	}

	if _, _, err := dateRange("04/01/2024", ""); err == nil {
		t.Error("expected an error for a non ISO date")
	}
}

func TestSetCredentials(t *testing.T) {
	var cfg config.AppConfig
	setCredentials(&cfg, model.Gemini, config.ProviderCredentials{APIKey: "g-key"})
	setCredentials(&cfg, model.Claude, config.ProviderCredentials{APIKey: "a-key", Model: "claude-x"})

	if cfg.API.Google == nil || cfg.API.Google.APIKey != "g-key" {
		t.Fatalf("google credentials = %#v", cfg.API.Google)
	}
	if cfg.API.Anthropic == nil || cfg.API.Anthropic.Model != "claude-x" {
		t.Fatalf("anthropic credentials = %#v", cfg.API.Anthropic)
	}
	if cfg.API.OpenAI != nil || cfg.API.Perplexity != nil {
		t.Error("unrelated providers were set")
	}
}

func TestSelectResults(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "aivis.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	one := 1
	mk := func(id, query string, p model.Platform, mentioned bool) model.QueryResult {
		r := model.QueryResult{ID: id, Query: query, Platform: p, Mentioned: mentioned, Sentiment: model.Neutral, Date: "2024-04-10"}
		if mentioned {
			r.Position = &one
		}
		return r
	}
	first, err := db.SaveCrawl(ctx, []model.QueryResult{mk("r1", "bilforsikring", model.Claude, true), mk("r2", "lån", model.Claude, false)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveCrawl(ctx, []model.QueryResult{mk("r3", "lån", model.Gemini, true)}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddQuery(ctx, model.Query{Text: "Lån", Category: "cat-1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		flags map[string]string
		want  []string
	}{
		{name: "all crawls", want: []string{"r3", "r1", "r2"}},
		{name: "one crawl", flags: map[string]string{"crawl": first}, want: []string{"r1", "r2"}},
		{name: "platform", flags: map[string]string{"platform": "gemini"}, want: []string{"r3"}},
		{name: "mentioned", flags: map[string]string{"mentioned": "true"}, want: []string{"r3", "r1"}},
		{name: "category", flags: map[string]string{"category": "cat-1"}, want: []string{"r3", "r2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cobra.Command{}
			addResultFilterFlags(c)
			for k, v := range tt.flags {
				if err := c.Flags().Set(k, v); err != nil {
					t.Fatal(err)
				}
			}
			results, err := selectResults(ctx, c, db)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, r := range results {
				got = append(got, r.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	c := &cobra.Command{}
	addResultFilterFlags(c)
	_ = c.Flags().Set("crawl", "missing")
	if _, err := selectResults(ctx, c, db); err == nil {
		t.Error("expected an error for an unknown crawl")
	}
}

type countingRunner struct {
	calls int
}

func (c *countingRunner) ProcessQueries(context.Context, []model.Query, processor.Options) (*processor.Batch, error) {
	c.calls++
	return &processor.Batch{}, nil
}

func TestLockedRunnerRefusesBusyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "aivis.sqlite")
	cli, err := utils.NewRunLock(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	apiLock, err := utils.NewRunLock(dbPath)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := cli.TryLock("aivis run of 3 queries"); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}

	inner := &countingRunner{}
	runner := &lockedRunner{proc: inner, lock: apiLock}
	queries := []model.Query{{ID: "q1", Text: "lån"}}

	_, err = runner.ProcessQueries(context.Background(), queries, processor.Options{})
	if !errors.Is(err, processor.ErrBatchRunning) {
		t.Fatalf("err = %v, want ErrBatchRunning", err)
	}
	if !strings.Contains(err.Error(), "aivis run of 3 queries") {
		t.Errorf("error %q does not name the holder", err)
	}
	if inner.calls != 0 {
		t.Fatalf("batch ran while the database was busy")
	}

	if err := cli.Unlock(); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.ProcessQueries(context.Background(), queries, processor.Options{}); err != nil {
		t.Fatalf("ProcessQueries: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
	if _, ok, err := cli.TryLock("aivis run"); err != nil || !ok {
		t.Fatalf("lock was not released after the batch: %v, %v", ok, err)
	}
	cli.Unlock()
}
