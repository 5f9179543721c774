package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kimjeppesen/Samlino-ai-pressence/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	       _       _
	  __ _(_)_   _(_)___
	 / _' | \ \ / / / __|
	| (_| | |\ V /| \__ \
	 \__,_|_| \_/ |_|___/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aivis",
	Short: "Track how often AI assistants mention your brand.",
	Long: LOGO + `aivis sends your search queries to ChatGPT, Claude, Perplexity and Gemini, finds where
the answers mention your brand and its competitors, and keeps weekly history of the results.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aivis.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy for provider calls (Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: ~/.config/aivis/aivis.sqlite)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine; provider keys may come from the real environment.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".aivis")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("aivis")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("relay.enabled", false)
	viper.SetDefault("relay.url", "")
	viper.SetDefault("pacing.call_delay", "1s")
	viper.SetDefault("pacing.slow_call_delay", "3s")
	viper.SetDefault("pacing.query_delay", "2s")
	viper.SetDefault("pacing.slow_query_delay", "5s")
	viper.SetDefault("http.retries", 2)
	viper.SetDefault("http.timeout", "0s")
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.aivis.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				utils.Log.Debugf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
