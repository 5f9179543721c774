// Package export writes query results as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or csv)", s)
}

// Header is the CSV column order.
var Header = []string{"ID", "Query", "Platform", "Mentioned", "Position", "Sentiment", "Date", "Context", "Confidence"}

// Write encodes results to w in format f.
func Write(w io.Writer, f Format, results []model.QueryResult) error {
	switch f {
	case FormatJSON:
		return JSON(w, results)
	case FormatCSV:
		return CSV(w, results)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// JSON writes results as an indented array.
func JSON(w io.Writer, results []model.QueryResult) error {
	if results == nil {
		results = []model.QueryResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// CSV writes one row per result. A missing position is an empty cell.
func CSV(w io.Writer, results []model.QueryResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range results {
		position := ""
		if r.Position != nil {
			position = strconv.Itoa(*r.Position)
		}
		row := []string{
			r.ID,
			r.Query,
			string(r.Platform),
			strconv.FormatBool(r.Mentioned),
			position,
			string(r.Sentiment),
			r.Date,
			r.Context,
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
