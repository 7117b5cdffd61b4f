package tabular

import (
	"strings"
	"testing"
)

func TestNormalizePrunesBlankRowsAndColumns(t *testing.T) {
	rows := [][]string{
		{"", "Name", "", "Age"},
		{"", "", "", ""},
		{"", "Ana", "", "30"},
		{"", "Bo", "", "41"},
	}
	got := normalize(rows)

	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (blank row pruned)", len(got))
	}
	for i, row := range got {
		if len(row) != 2 {
			t.Fatalf("row %d has %d cells, want 2 (blank columns pruned): %v", i, len(row), row)
		}
	}
	if got[0][0] != "Name" || got[0][1] != "Age" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][0] != "Ana" || got[2][1] != "41" {
		t.Errorf("data rows = %v", got[1:])
	}
}

func TestNormalizeRaggedRows(t *testing.T) {
	rows := [][]string{
		{"a", "b", "c"},
		{"d"},
	}
	got := normalize(rows)
	if len(got) != 2 {
		t.Fatalf("got %d rows", len(got))
	}
	if len(got[1]) != 3 {
		t.Errorf("short row not padded to column count: %v", got[1])
	}
}

func TestHead(t *testing.T) {
	table := Table{Name: "t", Rows: [][]string{{"1"}, {"2"}, {"3"}}}

	if got, truncated := table.Head(5); truncated || got.RowCount() != 3 {
		t.Errorf("Head above count must be identity, got %d rows truncated=%v", got.RowCount(), truncated)
	}
	if got, truncated := table.Head(2); !truncated || got.RowCount() != 2 {
		t.Errorf("Head(2) = %d rows truncated=%v", got.RowCount(), truncated)
	}
	if got, truncated := table.Head(0); truncated || got.RowCount() != 3 {
		t.Errorf("Head(0) means no limit, got %d rows truncated=%v", got.RowCount(), truncated)
	}
}

func TestRenderAlignsColumns(t *testing.T) {
	table := Table{Rows: [][]string{
		{"id", "name"},
		{"1", "Alexandra"},
		{"23", "Bo"},
	}}
	out := table.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	// first column padded to width 2
	if !strings.HasPrefix(lines[0], "id  ") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1   ") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if strings.HasSuffix(lines[2], " ") {
		t.Errorf("trailing padding on last column: %q", lines[2])
	}
}

func TestRenderEmpty(t *testing.T) {
	if out := (Table{}).Render(); out != "" {
		t.Errorf("empty table rendered %q", out)
	}
}
