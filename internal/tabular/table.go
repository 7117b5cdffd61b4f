package tabular

import (
	"strings"
	"unicode/utf8"
)

// Table is one sheet's or one CSV file's tabular content as rows of cells.
// Immutable once read; owned by the conversion run that read it.
type Table struct {
	Name string
	Rows [][]string
}

// RowCount returns the number of data rows.
func (t Table) RowCount() int { return len(t.Rows) }

// Head returns a copy of the table truncated to at most max rows, and whether
// truncation happened.
func (t Table) Head(max int) (Table, bool) {
	if max <= 0 || len(t.Rows) <= max {
		return t, false
	}
	return Table{Name: t.Name, Rows: t.Rows[:max]}, true
}

// Render serializes the table as plain text with columns padded to a common
// width, one row per line. Width is measured in runes so CJK content stays
// roughly aligned.
func (t Table) Render() string {
	if len(t.Rows) == 0 {
		return ""
	}
	widths := make([]int, 0, 8)
	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	var b strings.Builder
	for _, row := range t.Rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			if i < len(row)-1 {
				if pad := widths[i] - utf8.RuneCountInString(cell); pad > 0 {
					b.WriteString(strings.Repeat(" ", pad))
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// normalize prunes rows and columns that are entirely blank. Layout-only
// padding cells are the model's concern; fully empty rows/columns are just
// noise in the prompt.
func normalize(rows [][]string) [][]string {
	kept := make([][]string, 0, len(rows))
	maxCols := 0
	for _, row := range rows {
		if !blankRow(row) {
			kept = append(kept, row)
			if len(row) > maxCols {
				maxCols = len(row)
			}
		}
	}
	if len(kept) == 0 {
		return kept
	}

	blankCol := make([]bool, maxCols)
	for c := 0; c < maxCols; c++ {
		blankCol[c] = true
	}
	for _, row := range kept {
		for c, cell := range row {
			if strings.TrimSpace(cell) != "" {
				blankCol[c] = false
			}
		}
	}

	out := make([][]string, 0, len(kept))
	for _, row := range kept {
		pruned := make([]string, 0, maxCols)
		for c := 0; c < maxCols; c++ {
			if blankCol[c] {
				continue
			}
			if c < len(row) {
				pruned = append(pruned, strings.TrimRight(row[c], " \t"))
			} else {
				pruned = append(pruned, "")
			}
		}
		out = append(out, pruned)
	}
	return out
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
