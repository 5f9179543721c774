package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/telemetry"
	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/providers"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openDB opens the database named by --dbpath, creating its directory.
func openDB(cmd *cobra.Command) (*storage.DB, string, error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, "", err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		return nil, "", fmt.Errorf("could not open database %s: %w", absPath, err)
	}
	return db, absPath, nil
}

func configStore(db *storage.DB) *config.Store {
	return config.NewStore(db, os.Getenv)
}

// pacingFromViper reads the pacing.* keys. ChatGPT is always the slow platform.
func pacingFromViper() processor.Pacing {
	p := processor.DefaultPacing()
	p.CallDelay = viper.GetDuration("pacing.call_delay")
	p.SlowCallDelay = viper.GetDuration("pacing.slow_call_delay")
	p.QueryDelay = viper.GetDuration("pacing.query_delay")
	p.SlowQueryDelay = viper.GetDuration("pacing.slow_query_delay")
	return p
}

func providerOptions(cmd *cobra.Command) providers.Options {
	proxy, _ := cmd.Flags().GetString("proxy")
	return providers.Options{
		Retries:  viper.GetInt("http.retries"),
		Timeout:  viper.GetDuration("http.timeout"),
		Proxy:    proxy,
		UseRelay: viper.GetBool("relay.enabled"),
		RelayURL: viper.GetString("relay.url"),
	}
}

// newProcessor wires a processor to db with the CLI's logger and pacing.
// m may be nil.
func newProcessor(cmd *cobra.Command, db *storage.DB, m *telemetry.Metrics) *processor.Processor {
	cfg := processor.Config{
		Source:          configStore(db),
		Store:           db,
		Pacer:           processor.NewPacer(pacingFromViper()),
		Log:             utils.Log,
		ProviderOptions: providerOptions(cmd),
	}
	if m != nil {
		cfg.Recorder = m
	}
	return processor.New(cfg)
}

// platformsFlag parses --platform; empty means every configured platform.
func platformsFlag(cmd *cobra.Command) ([]model.Platform, error) {
	raw, _ := cmd.Flags().GetString("platform")
	return model.ParsePlatforms(raw)
}

// signalContext is canceled on Ctrl+C so a running batch stops after the
// current query and keeps what it already saved.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func positionString(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func oneLine(s string, n int) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), n)
}
