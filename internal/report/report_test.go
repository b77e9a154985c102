package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
	"github.com/pHo9UBenaA/majestic-million-feed/internal/report"
)

func sampleRecords() []records.Record {
	return []records.Record{
		{
			{Name: "GlobalRank", Value: int64(1)},
			{Name: "Domain", Value: "google.com"},
			{Name: "RefIPs", Value: float64(2.5)},
			{Name: "Note", Value: nil},
		},
		{
			{Name: "GlobalRank", Value: int64(2)},
			{Name: "Domain", Value: "=HYPERLINK(\"x\")"},
			{Name: "RefIPs", Value: float64(-3)},
			{Name: "Note", Value: "a|b_c"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    report.Format
		wantErr bool
	}{
		{in: "json", want: report.FormatJSON},
		{in: "JSONL", want: report.FormatJSONL},
		{in: " csv ", want: report.FormatCSV},
		{in: "markdown", want: report.FormatMarkdown},
		{in: "md", want: report.FormatMarkdown},
		{in: "xml", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			got, err := report.ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	got, err := report.NewJSONFormatter().Format(sampleRecords()[:1])
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := `[
  {
    "GlobalRank": 1,
    "Domain": "google.com",
    "RefIPs": 2.5,
    "Note": null
  }
]
`
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	empty, err := report.NewJSONFormatter().Format(nil)
	if err != nil {
		t.Fatalf("Format(nil) error = %v", err)
	}
	if empty != "[]\n" {
		t.Errorf("Format(nil) = %q, want %q", empty, "[]\n")
	}
}

func TestJSONLFormatter_Format(t *testing.T) {
	got, err := report.NewJSONLFormatter().Format(sampleRecords())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0] != `{"GlobalRank":1,"Domain":"google.com","RefIPs":2.5,"Note":null}` {
		t.Errorf("line 0 = %s", lines[0])
	}
}

func TestCSVFormatter_Format(t *testing.T) {
	got, err := report.NewCSVFormatter().Format(sampleRecords())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	want := [][]string{
		{"GlobalRank", "Domain", "RefIPs", "Note"},
		{"1", "google.com", "2.5", ""},
		{"2", "'=HYPERLINK(\"x\")", "-3", "a|b_c"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		if strings.Join(rows[i], "\x00") != strings.Join(want[i], "\x00") {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}

	empty, err := report.NewCSVFormatter().Format(nil)
	if err != nil || empty != "" {
		t.Errorf("Format(nil) = %q, %v; want empty", empty, err)
	}
}

func TestCSVInjectionEscaping(t *testing.T) {
	cases := []struct {
		cell string
		want string
	}{
		{cell: "=1+1", want: "'=1+1"},
		{cell: "@SUM(A1)", want: "'@SUM(A1)"},
		{cell: "+cmd", want: "'+cmd"},
		{cell: "-cmd", want: "'-cmd"},
		{cell: "  =1", want: "'  =1"},
		{cell: "-42", want: "-42"},
		{cell: "+0.5", want: "+0.5"},
		{cell: "example.com", want: "example.com"},
	}

	for _, tt := range cases {
		t.Run(tt.cell, func(t *testing.T) {
			recs := []records.Record{{{Name: "v", Value: tt.cell}}}
			got, err := report.NewCSVFormatter().Format(recs)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			rows, err := csv.NewReader(strings.NewReader(got)).ReadAll()
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if rows[1][0] != tt.want {
				t.Errorf("cell = %q, want %q", rows[1][0], tt.want)
			}
		})
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	got, err := report.NewMarkdownFormatter().Format(sampleRecords())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := "| GlobalRank | Domain | RefIPs | Note |\n" +
		"| --- | --- | --- | --- |\n" +
		"| 1 | google.com | 2.5 | NA |\n" +
		"| 2 | =HYPERLINK(\"x\") | -3 | a\\|b\\_c |\n"
	if got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestWriter_Render(t *testing.T) {
	var buf bytes.Buffer
	if err := report.NewWriter().Render(&buf, report.FormatJSONL, sampleRecords()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("Render() wrote %q, want two lines", buf.String())
	}

	if err := report.NewWriter().Render(&buf, report.Format("xml"), nil); err == nil {
		t.Error("Render() with unknown format should fail")
	}
}

func TestWriter_WriteFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writer := report.NewWriter()
	ctx := context.Background()

	cases := []struct {
		name   string
		format report.Format
	}{
		{name: "report.md", format: report.FormatMarkdown},
		{name: "report.csv", format: report.FormatCSV},
		{name: "report.jsonl", format: report.FormatJSONL},
		{name: "report.json", format: report.FormatJSON},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			outputPath := filepath.Join(tmpDir, tt.name)
			if err := writer.WriteFile(ctx, outputPath, tt.format, sampleRecords()); err != nil {
				t.Fatalf("write error = %v", err)
			}

			info, err := os.Stat(outputPath)
			if err != nil {
				t.Fatalf("failed to stat output file: %v", err)
			}
			if info.Size() == 0 {
				t.Error("output file is empty")
			}
			if mode := info.Mode().Perm(); mode != 0o600 {
				t.Errorf("file permissions = %04o, want 0600", mode)
			}
		})
	}
}

func TestWriter_WriteFileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outputPath := filepath.Join(t.TempDir(), "report.json")
	if err := report.NewWriter().WriteFile(ctx, outputPath, report.FormatJSON, sampleRecords()); err == nil {
		t.Fatal("WriteFile() with canceled context should fail")
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Errorf("output file should not exist, stat error = %v", err)
	}
}
