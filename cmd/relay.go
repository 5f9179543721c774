package cmd

import (
	"net/http"
	"time"

	"github.com/kimjeppesen/Samlino-ai-pressence/internal/server"
	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/spf13/cobra"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run only the OpenAI relay endpoint",
	Long: `Serves POST /relay, which forwards a chat completion request whose API key travels in the
"apiKey" body field. Point relay.url at it and set relay.enabled to route ChatGPT calls through it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		upstream, _ := cmd.Flags().GetString("upstream")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		mux := http.NewServeMux()
		mux.Handle("/relay", server.NewRelay(upstream, timeout, nil))

		srv := &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		utils.Log.Infof("Starting relay on %s", listenAddr)
		return srv.ListenAndServe()
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().String("listen", ":8081", "HTTP listen address")
	relayCmd.Flags().String("upstream", server.DefaultRelayUpstream, "Chat completions URL to forward to")
	relayCmd.Flags().Duration("timeout", server.DefaultRelayTimeout, "Upstream time budget")
}
