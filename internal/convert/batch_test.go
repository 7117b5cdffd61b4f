package convert

import (
	"fmt"
	"strings"
	"testing"

	"github.com/local/sheetmd/internal/tabular"
)

func makeTable(name string, rows, cols int) tabular.Table {
	t := tabular.Table{Name: name}
	for r := 0; r < rows; r++ {
		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			row[c] = fmt.Sprintf("r%dc%d", r, c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func flatten(batches [][]int) []int {
	var out []int
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

func TestPlanBatchesCoversEveryTableInOrder(t *testing.T) {
	tables := []tabular.Table{
		makeTable("a", 10, 3),
		makeTable("b", 20, 3),
		makeTable("c", 5, 3),
		makeTable("d", 1, 1),
	}
	batches := PlanBatches(tables, PlanOptions{MaxTokens: 400, MaxBatchSize: 2})

	got := flatten(batches)
	if len(got) != len(tables) {
		t.Fatalf("flattened batches have %d indices, want %d", len(got), len(tables))
	}
	for i, idx := range got {
		if idx != i {
			t.Fatalf("index order broken at position %d: got %d", i, idx)
		}
	}
	for _, b := range batches {
		if len(b) == 0 {
			t.Fatal("empty batch in plan")
		}
		if len(b) > 2 {
			t.Fatalf("batch exceeds size limit: %v", b)
		}
	}
}

func TestPlanBatchesSmallSheetsShareOneBatch(t *testing.T) {
	tables := []tabular.Table{
		makeTable("one", 2, 2),
		makeTable("two", 2, 2),
		makeTable("three", 2, 2),
	}
	batches := PlanBatches(tables, PlanOptions{})
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Fatalf("got batch %v, want [0 1 2]", batches[0])
	}
}

func TestPlanBatchesSizeLimitOne(t *testing.T) {
	tables := []tabular.Table{
		makeTable("a", 2, 2),
		makeTable("b", 2, 2),
		makeTable("c", 2, 2),
	}
	batches := PlanBatches(tables, PlanOptions{MaxBatchSize: 1})
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	for i, b := range batches {
		if len(b) != 1 || b[0] != i {
			t.Fatalf("batch %d is %v, want [%d]", i, b, i)
		}
	}
}

func TestPlanBatchesOversizedTableGetsOwnBatch(t *testing.T) {
	big := makeTable("big", 500, 10)
	bigCost := estimateTokens(sheetBlock(big), 4)
	budget := bigCost / 2

	tables := []tabular.Table{makeTable("small", 2, 2), big, makeTable("tail", 2, 2)}
	batches := PlanBatches(tables, PlanOptions{MaxTokens: budget})

	found := false
	for _, b := range batches {
		for _, idx := range b {
			if idx == 1 {
				found = true
				if len(b) != 1 {
					t.Fatalf("oversized table shares batch %v", b)
				}
			}
		}
	}
	if !found {
		t.Fatal("oversized table missing from plan")
	}
}

func TestPlanBatchesBudgetAccountsForOverhead(t *testing.T) {
	tables := []tabular.Table{makeTable("a", 4, 4), makeTable("b", 4, 4)}
	cost := estimateTokens(sheetBlock(tables[0]), 4)

	// Without overhead both fit; overhead pushes the second into its own batch.
	budget := 2*cost + 1
	batches := PlanBatches(tables, PlanOptions{MaxTokens: budget, PromptOverhead: cost})
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2 once overhead is counted", len(batches))
	}
}

func TestMergeBatchContainsMarkersAndTrailer(t *testing.T) {
	tables := []tabular.Table{makeTable("First Sheet", 3, 2), makeTable("Second", 3, 2)}
	data := MergeBatch(tables, []int{0, 1}, 0)

	for _, want := range []string{
		"Processing 2 sheets in this batch.",
		sheetMarkerPrefix + "First Sheet ===",
		sheetMarkerPrefix + "Second ===",
		"END OF BATCH - Total sheets: 2",
	} {
		if !strings.Contains(data, want) {
			t.Errorf("merged data missing %q", want)
		}
	}
}

func TestMergeBatchTruncatesLongTables(t *testing.T) {
	tables := []tabular.Table{makeTable("long", 50, 1)}
	data := MergeBatch(tables, []int{0}, 10)

	if strings.Contains(data, "r10c0") {
		t.Error("row past the ceiling leaked into the payload")
	}
	if !strings.Contains(data, "r9c0") {
		t.Error("row inside the ceiling missing from the payload")
	}
}
