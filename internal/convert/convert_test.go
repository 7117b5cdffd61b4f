package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/local/sheetmd/internal/ai"
	"github.com/local/sheetmd/internal/config"
)

func testConvertConfig() config.ConvertConfig {
	return config.ConvertConfig{
		MaxRetries:        1,
		InitialRetryDelay: time.Nanosecond,
		MaxTokensPerBatch: 800000,
		AvgCharsPerToken:  4,
		MaxBatchSize:      20,
		MaxRowsPerTable:   5000,
		MaxRowsFallback:   3000,
	}
}

func newTestCoordinator(t *testing.T, client ai.Client, cfg config.ConvertConfig) (*Coordinator, *[]time.Duration) {
	t.Helper()
	c := NewCoordinator(client, config.AIConfig{Model: "test-model"}, cfg)
	var sleeps []time.Duration
	capture := func(d time.Duration) { sleeps = append(sleeps, d) }
	c.sleep = capture
	c.gen.sleep = capture
	return c, &sleeps
}

func writeWorkbook(t *testing.T, dir string, sheets map[string][][]string) string {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatal(err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatal(err)
			}
		}
		for r, row := range rows {
			for c, cell := range row {
				axis, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if err := f.SetCellValue(name, axis, cell); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	path := filepath.Join(dir, "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func filesJSON(names ...string) string {
	var b strings.Builder
	b.WriteString(`{"files": [`)
	for i, n := range names {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"filename": %q, "content": "# %s"}`, n, n)
	}
	b.WriteString("]}")
	return b.String()
}

func TestConvertFileWorkbookSingleBatch(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, map[string][][]string{
		"Revenue": {{"Month", "Total"}, {"Jan", "100"}},
	})

	client := &fakeClient{responses: []fakeResp{
		{text: filesJSON("Revenue.md")},
	}}
	c, _ := newTestCoordinator(t, client, testConvertConfig())

	out := filepath.Join(dir, "out")
	res := c.ConvertFile(context.Background(), path, out)

	if len(res.Errors) != 0 {
		t.Fatalf("errors: %+v", res.Errors)
	}
	if len(res.Created) != 1 {
		t.Fatalf("created %v, want one file", res.Created)
	}
	want := filepath.Join(out, "book_Revenue.md")
	if res.Created[0] != want {
		t.Errorf("path = %q, want %q", res.Created[0], want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# Revenue.md" {
		t.Errorf("content = %q", data)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 batch request", client.calls)
	}
	if !strings.Contains(client.prompts[0], "BATCH MODE") {
		t.Error("workbook request did not use the batch template")
	}
}

func TestConvertFileBatchFailureFallsBackPerSheet(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, map[string][][]string{
		"Alpha": {{"a", "1"}},
		"Beta":  {{"b", "2"}},
	})

	client := &fakeClient{responses: []fakeResp{
		{err: errors.New("upstream broken")},       // batch attempt
		{text: filesJSON("Alpha.md")},              // sheet 1
		{err: errors.New("API key not valid ...")}, // sheet 2
	}}
	cfg := testConvertConfig()
	cfg.SheetDelay = 5 * time.Second
	c, sleeps := newTestCoordinator(t, client, cfg)

	out := filepath.Join(dir, "out")
	res := c.ConvertFile(context.Background(), path, out)

	if len(res.Created) != 1 {
		t.Fatalf("created %v, want exactly the surviving sheet", res.Created)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors %+v, want one per-sheet failure", res.Errors)
	}
	e := res.Errors[0]
	if !strings.Contains(e.File, "book.xlsx - ") {
		t.Errorf("error file label = %q, want file - sheet form", e.File)
	}
	if e.Err != "API key is not valid." {
		t.Errorf("error message = %q, want friendly form", e.Err)
	}
	if client.calls != 3 {
		t.Errorf("calls = %d, want batch + 2 fallback sheets", client.calls)
	}
	if !strings.Contains(client.prompts[1], "SINGLE sheet") {
		t.Error("fallback request did not use the single-sheet template")
	}
	// one pause between the two fallback sheets
	found := false
	for _, d := range *sleeps {
		if d == 5*time.Second {
			found = true
		}
	}
	if !found {
		t.Errorf("sheet delay not applied, sleeps: %v", *sleeps)
	}
}

func TestConvertFileCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.csv")
	if err := os.WriteFile(path, []byte("city,population\nTokyo,37400000\nDelhi,31000000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{responses: []fakeResp{
		{text: filesJSON("cities.md")},
	}}
	c, _ := newTestCoordinator(t, client, testConvertConfig())

	res := c.ConvertFile(context.Background(), path, filepath.Join(dir, "out"))
	if len(res.Errors) != 0 {
		t.Fatalf("errors: %+v", res.Errors)
	}
	if len(res.Created) != 1 {
		t.Fatalf("created %v", res.Created)
	}
	if !strings.Contains(client.prompts[0], "CSV file 'cities.csv':") {
		t.Error("CSV header missing from request payload")
	}
	if strings.Contains(client.prompts[0], "BATCH MODE") {
		t.Error("CSV request used the batch template")
	}
}

func TestConvertFileCSVTruncation(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("id,value\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "row%d,%d\n", i, i)
	}
	path := filepath.Join(dir, "big.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{responses: []fakeResp{{text: filesJSON("big.md")}}}
	cfg := testConvertConfig()
	cfg.MaxRowsPerTable = 10
	c, _ := newTestCoordinator(t, client, cfg)

	res := c.ConvertFile(context.Background(), path, filepath.Join(dir, "out"))
	if len(res.Errors) != 0 {
		t.Fatalf("errors: %+v", res.Errors)
	}
	prompt := client.prompts[0]
	if !strings.Contains(prompt, "row8") {
		t.Error("row inside the ceiling missing")
	}
	if strings.Contains(prompt, "row10") {
		t.Error("row past the ceiling leaked into the payload")
	}
}

func TestConvertFileUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{}
	c, _ := newTestCoordinator(t, client, testConvertConfig())

	res := c.ConvertFile(context.Background(), path, filepath.Join(dir, "out"))
	if len(res.Created) != 0 {
		t.Errorf("created %v for unsupported input", res.Created)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors %+v, want one", res.Errors)
	}
	if client.calls != 0 {
		t.Error("generation attempted for unsupported input")
	}
}

func TestConvertDirectory(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "a.csv"), []byte("x,y\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "b.csv"), []byte("x,y\n3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "skip.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{responses: []fakeResp{
		{text: filesJSON("a.md")},
		{text: filesJSON("b.md")},
	}}
	c, _ := newTestCoordinator(t, client, testConvertConfig())

	res := c.Convert(context.Background(), in, filepath.Join(dir, "out"))
	if len(res.Errors) != 0 {
		t.Fatalf("errors: %+v", res.Errors)
	}
	if len(res.Created) != 2 {
		t.Fatalf("created %v, want 2 files", res.Created)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want one per CSV", client.calls)
	}
}

func TestFriendlyMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("API key not valid. Please pass a valid API key."), "API key is not valid."},
		{errors.New("HTTP 429: rate limit"), "Quota exceeded or requests sent too quickly."},
		{errors.New("quota exhausted"), "Quota exceeded or requests sent too quickly."},
		{errors.New("model gemini-x not found"), "Model 'test-model' does not exist or is not supported."},
		{errors.New("connection reset"), "connection reset"},
	}
	for _, c := range cases {
		if got := friendlyMessage("test-model", c.err); got != c.want {
			t.Errorf("friendlyMessage(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
