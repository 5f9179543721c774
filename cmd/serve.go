package cmd

import (
	"context"
	"fmt"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/server"
	"github.com/kimjeppesen/Samlino-ai-pressence/internal/telemetry"
	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/processor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server for dashboards",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, absPath, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		lock, err := utils.NewRunLock(absPath)
		if err != nil {
			return err
		}

		m := telemetry.New()
		runner := &lockedRunner{proc: newProcessor(cmd, db, m), lock: lock}
		srv := server.New(db, configStore(db), runner, viper.GetString("server.username"), viper.GetString("server.password"))
		defer srv.Close()
		srv.Metrics = m

		if withRelay, _ := cmd.Flags().GetBool("relay"); withRelay {
			srv.Relay = server.NewRelay("", 0, nil)
		}

		listenAddr, _ := cmd.Flags().GetString("listen")
		if listenAddr == "" {
			listenAddr = viper.GetString("server.listen")
		}
		return srv.Start(listenAddr)
	},
}

// lockedRunner holds the database run lock for the length of each batch so
// a CLI run and an API run never interleave. A busy lock is refused rather
// than waited on, naming whoever holds it.
type lockedRunner struct {
	proc server.BatchRunner
	lock *utils.RunLock
}

func (l *lockedRunner) ProcessQueries(ctx context.Context, queries []model.Query, opts processor.Options) (*processor.Batch, error) {
	holder, ok, err := l.lock.TryLock(utils.RunOwner(fmt.Sprintf("aivis serve batch of %d queries", len(queries))))
	if err != nil {
		return nil, err
	}
	if !ok {
		if holder == "" {
			return nil, processor.ErrBatchRunning
		}
		return nil, fmt.Errorf("%w: database is busy with %s", processor.ErrBatchRunning, holder)
	}
	defer l.lock.Unlock()
	return l.proc.ProcessQueries(ctx, queries, opts)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default: server.listen from config, :8080)")
	serveCmd.Flags().Bool("relay", false, "Also serve the OpenAI relay at /relay")
}
