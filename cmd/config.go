package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the brand, language and API key settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings with API keys masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		cfg, err := configStore(db).Load(context.Background())
		if err != nil {
			return err
		}
		printConfig(cfg.Redacted())
		return nil
	},
}

// providerFlags maps each platform to its key and model flag prefix.
var providerFlags = []struct {
	prefix   string
	platform model.Platform
}{
	{"openai", model.ChatGPT},
	{"anthropic", model.Claude},
	{"perplexity", model.Perplexity},
	{"google", model.Gemini},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change settings. An empty --<provider>-key removes that provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		store := configStore(db)
		current, err := store.Load(ctx)
		if err != nil {
			return err
		}

		var patch config.AppConfig
		patch.Brand.Name, _ = cmd.Flags().GetString("brand")
		if cmd.Flags().Changed("aliases") {
			aliases, _ := cmd.Flags().GetStringSlice("aliases")
			if aliases == nil {
				aliases = []string{}
			}
			patch.Brand.Aliases = aliases
		}
		patch.Language.Code, _ = cmd.Flags().GetString("language")
		patch.Language.Country, _ = cmd.Flags().GetString("country")

		for _, pf := range providerFlags {
			keyChanged := cmd.Flags().Changed(pf.prefix + "-key")
			modelChanged := cmd.Flags().Changed(pf.prefix + "-model")
			if !keyChanged && !modelChanged {
				continue
			}
			creds, _ := current.Credentials(pf.platform)
			if keyChanged {
				creds.APIKey, _ = cmd.Flags().GetString(pf.prefix + "-key")
			}
			if modelChanged {
				creds.Model, _ = cmd.Flags().GetString(pf.prefix + "-model")
			}
			if !keyChanged && creds.APIKey == "" {
				return fmt.Errorf("set --%s-key before changing its model", pf.prefix)
			}
			setCredentials(&patch, pf.platform, creds)
		}

		cfg, err := store.Save(ctx, patch)
		if err != nil {
			return err
		}
		printConfig(cfg.Redacted())
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget saved settings and fall back to the environment and defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		cfg, err := configStore(db).Reset(context.Background())
		if err != nil {
			return err
		}
		printConfig(cfg.Redacted())
		return nil
	},
}

func setCredentials(cfg *config.AppConfig, p model.Platform, creds config.ProviderCredentials) {
	c := &creds
	switch p {
	case model.ChatGPT:
		cfg.API.OpenAI = c
	case model.Claude:
		cfg.API.Anthropic = c
	case model.Perplexity:
		cfg.API.Perplexity = c
	case model.Gemini:
		cfg.API.Google = c
	}
}

func printConfig(cfg config.AppConfig) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Brand\t%s\t\n", cfg.Brand.Name)
	fmt.Fprintf(w, "Aliases\t%s\t\n", strings.Join(cfg.Brand.Aliases, ", "))
	fmt.Fprintf(w, "Language\t%s-%s\t\n", cfg.Language.Code, cfg.Language.Country)
	fmt.Fprintln(w, " \t \t")
	fmt.Fprintln(w, "PLATFORM\tKEY\tMODEL\t")
	for _, pf := range providerFlags {
		creds, ok := cfg.Credentials(pf.platform)
		if !ok {
			fmt.Fprintf(w, "%s\t(not set)\t\t\n", pf.platform)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", pf.platform, creds.APIKey, creds.Model)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configResetCmd)

	configSetCmd.Flags().String("brand", "", "Brand name to look for")
	configSetCmd.Flags().StringSlice("aliases", nil, "Comma separated brand aliases")
	configSetCmd.Flags().String("language", "", "Answer language code (e.g. da)")
	configSetCmd.Flags().String("country", "", "Market country code (e.g. DK)")
	for _, pf := range providerFlags {
		configSetCmd.Flags().String(pf.prefix+"-key", "", fmt.Sprintf("%s API key", pf.platform))
		configSetCmd.Flags().String(pf.prefix+"-model", "", fmt.Sprintf("%s model", pf.platform))
	}
}
