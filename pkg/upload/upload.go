// Package upload reads query lists from text and CSV files.
package upload

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

var (
	ErrEmpty         = errors.New("file is empty")
	ErrNoQueryColumn = errors.New(`no query column found. Please ensure your CSV has a column named "query", "prompt", or "question"`)
	ErrUnsupported   = errors.New("unsupported file type")
)

// Row is one query read from a file. Fields holds the other columns of a CSV
// row, without date and time columns.
type Row struct {
	ID     string            `json:"id"`
	Query  string            `json:"query"`
	Fields map[string]string `json:"fields,omitempty"`
}

type File struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Queries converts the rows to queries. A "category" or "intent" column
// fills the matching field.
func (f *File) Queries() []model.Query {
	out := make([]model.Query, 0, len(f.Rows))
	for _, r := range f.Rows {
		q := model.Query{ID: r.ID, Text: r.Query}
		for k, v := range r.Fields {
			switch strings.ToLower(k) {
			case "category":
				q.Category = v
			case "intent":
				q.Intent = v
			}
		}
		out = append(out, q)
	}
	return out
}

// ReadFile reads path based on its extension.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(filepath.Base(path), f)
}

// Parse reads r as the file type implied by name.
func Parse(name string, r io.Reader) (*File, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt":
		return ParseText(r)
	case ".csv":
		return ParseCSV(r)
	case ".xlsx", ".xls":
		return nil, fmt.Errorf("%w: Excel files are not supported, please convert %s to CSV", ErrUnsupported, name)
	default:
		return nil, fmt.Errorf("%w: %s. Please use CSV or TXT files", ErrUnsupported, name)
	}
}

// ParseText reads one query per non-blank line.
func ParseText(r io.Reader) (*File, error) {
	out := &File{Headers: []string{"query"}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		out.Rows = append(out.Rows, Row{ID: fmt.Sprintf("query-%d", len(out.Rows)+1), Query: line})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func queryColumn(headers []string) int {
	for i, h := range headers {
		h = strings.ToLower(h)
		if strings.Contains(h, "query") || strings.Contains(h, "prompt") || strings.Contains(h, "question") {
			return i
		}
	}
	return -1
}

func isDateColumn(header string) bool {
	h := strings.ToLower(header)
	return strings.Contains(h, "date") || strings.Contains(h, "time")
}

// ParseCSV reads a table whose header row names a query, prompt or question
// column. Row ids count data rows, so a skipped empty query leaves a gap.
func ParseCSV(r io.Reader) (*File, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("could not read CSV header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}
	col := queryColumn(headers)
	if col < 0 {
		return nil, ErrNoQueryColumn
	}

	out := &File{Headers: headers}
	for n := 1; ; n++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read CSV row %d: %w", n, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			n--
			continue
		}

		var query string
		if col < len(record) {
			query = strings.TrimSpace(record[col])
		}
		if query == "" {
			continue
		}
		row := Row{ID: fmt.Sprintf("query-%d", n), Query: query, Fields: map[string]string{}}
		for i, h := range headers {
			if i == col || isDateColumn(h) {
				continue
			}
			var v string
			if i < len(record) {
				v = strings.TrimSpace(record[i])
			}
			row.Fields[h] = v
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
