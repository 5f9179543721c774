package model

import (
	"reflect"
	"testing"
)

func TestParsePlatforms(t *testing.T) {
	tests := []struct {
		in      string
		want    []Platform
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "all", want: nil},
		{in: "openai, Claude", want: []Platform{ChatGPT, Claude}},
		{in: "gemini,google", want: []Platform{Gemini}},
		{in: "bard", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParsePlatforms(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCrawlSummary(t *testing.T) {
	c := Crawl{
		CrawlID: "crawl-1",
		Date:    "2024-04-10",
		Results: []QueryResult{{Mentioned: true}, {Mentioned: false}, {Mentioned: true}},
		Metadata: CrawlMetadata{
			Platforms: []string{"ChatGPT"},
		},
	}
	s := c.Summary()
	if s.ResultCount != 3 || s.MentionedCount != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
