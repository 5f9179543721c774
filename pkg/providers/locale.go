package providers

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/config"
)

// SystemPrompt asks the model to answer for the configured market.
// e.g., da/DK -> "You are responding to queries in Danish (Denmark). ..."
func SystemPrompt(lang config.LanguageConfig) string {
	code := strings.TrimSpace(lang.Code)
	if code == "" {
		code = "da"
	}
	country := strings.TrimSpace(lang.Country)
	if country == "" {
		country = "DK"
	}

	langName := code
	if tag, err := language.Parse(code); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			langName = name
		}
	}
	countryName := country
	if region, err := language.ParseRegion(country); err == nil {
		if name := display.English.Regions().Name(region); name != "" {
			countryName = name
		}
	}
	return fmt.Sprintf("You are responding to queries in %s (%s). Please provide responses in %s when appropriate, and consider the %s market context.",
		langName, countryName, langName, langName)
}
