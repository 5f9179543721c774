package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/kimjeppesen/Samlino-ai-pressence/pkg/model"
)

func sample() []model.QueryResult {
	pos := 2
	return []model.QueryResult{
		{
			ID: "r1", Query: "bedste lån, billigst", Platform: model.Claude, Mentioned: true, Position: &pos,
			Sentiment: model.Neutral, Date: "2024-04-10", Context: `Vi anbefaler "Samlino"`, Confidence: 0.5,
		},
		{ID: "r2", Query: "forsikring", Platform: model.Gemini, Sentiment: model.Neutral, Date: "2024-04-10"},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, sample()); err != nil {
		t.Fatalf("CSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	want := [][]string{
		Header,
		{"r1", "bedste lån, billigst", "Claude", "true", "2", "neutral", "2024-04-10", `Vi anbefaler "Samlino"`, "0.5"},
		{"r2", "forsikring", "Gemini", "false", "", "neutral", "2024-04-10", "", "0"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("CSV() records = %q, want %q", records, want)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sample()); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var got []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(got) != 2 || got[0]["position"] != float64(2) || got[1]["position"] != nil {
		t.Errorf("JSON() = %v", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  {")) {
		t.Error("JSON output should be indented")
	}

	buf.Reset()
	if err := JSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("JSON(nil) = %q, want []", got)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, " CSV ": FormatCSV} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}
