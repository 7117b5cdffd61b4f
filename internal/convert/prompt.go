package convert

import (
	"fmt"
	"strings"

	"github.com/local/sheetmd/internal/tabular"
	"github.com/rs/zerolog/log"
)

// singleTemplate instructs the model to transform one table into one Markdown
// file, returned as a single JSON object.
const singleTemplate = `You are a document-structure transformation engine.
Preserve ALL content while improving semantic clarity.

ABSOLUTE RULES:
- Do NOT remove, summarize, or rewrite content.
- You MAY change layout and structure for readability.
- Content fidelity is mandatory; layout fidelity is optional.

CONTENT HANDLING:
- Preserve all text exactly as written (including non-Latin scripts).
- Preserve the original logical order of content.
- Empty cells used only for layout MAY be removed.

LAYOUT TRANSFORMATION:
- Layout-based tables (many empty cells, alignment purpose) become headings,
  bullet lists, or paragraphs.
- Data tables (headers with consistent rows) become Markdown tables.
- Section titles become Markdown headings; captions and notes become block
  text under the related section.

OUTPUT:
- Return a JSON object with a single key "files".
- "files" is a list of objects, each with:
  - "filename": the suggested filename (must end in .md)
  - "content": the full markdown content
- Valid JSON only. No explanation text outside the JSON.`

// batchTemplate extends the single template for multi-sheet batches: one
// output file per input sheet, no cross-sheet mixing.
const batchTemplate = singleTemplate + `

BATCH MODE (CRITICAL):
- You are processing MULTIPLE SHEETS in a SINGLE BATCH.
- Each sheet is delimited with "` + sheetMarkerPrefix + `<sheet name> ===".
- Create a SEPARATE file for EACH sheet; never mix content between sheets.
- Use the sheet name (with .md extension) as the filename.
- The number of files in your response MUST match the number of input sheets.`

const (
	sheetMarkerPrefix = "=== SHEET: "
	batchRule         = "================================================================================"
)

// PromptBuilder composes request payloads from the fixed templates, optional
// user-supplied instructions and serialized table data.
type PromptBuilder struct {
	Extra string // appended after the template, before the data section
}

// sheetBlock serializes one table the way it appears inside a batch payload.
// The batch planner uses the same serialization to estimate per-table cost.
func sheetBlock(t tabular.Table) string {
	var b strings.Builder
	b.WriteString(batchRule + "\n")
	b.WriteString(sheetMarkerPrefix + t.Name + " ===\n")
	b.WriteString(batchRule + "\n\n")
	b.WriteString(t.Render())
	b.WriteString("\n\n")
	return b.String()
}

// TemplateOverhead estimates the instruction tokens the planner must account
// for on top of table data.
func (p *PromptBuilder) TemplateOverhead(avgCharsPerToken int) int {
	n := estimateTokens(batchTemplate, avgCharsPerToken)
	if p.Extra != "" {
		n += estimateTokens(p.Extra, avgCharsPerToken)
	}
	return n
}

// MergeBatch serializes the selected tables into one delimited data section.
// Tables above maxRows are truncated first; truncation is a logged side
// effect, not an error.
func MergeBatch(tables []tabular.Table, indices []int, maxRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processing %d sheets in this batch.\n\n", len(indices))
	for _, idx := range indices {
		t := tables[idx]
		if capped, truncated := t.Head(maxRows); truncated {
			log.Warn().Str("sheet", t.Name).Int("rows", t.RowCount()).Int("limit", maxRows).Msg("sheet truncated for batch payload")
			t = capped
		}
		b.WriteString(sheetBlock(t))
	}
	b.WriteString(batchRule + "\n")
	fmt.Fprintf(&b, "END OF BATCH - Total sheets: %d\n", len(indices))
	b.WriteString(batchRule + "\n")
	return b.String()
}

// Batch builds the full payload for a multi-sheet request.
func (p *PromptBuilder) Batch(data string, sheetCount int) string {
	var b strings.Builder
	b.WriteString(batchTemplate)
	b.WriteByte('\n')
	p.writeExtra(&b)
	fmt.Fprintf(&b, "\nHere is the batch data containing %d sheets:\n\n%s", sheetCount, data)
	return b.String()
}

// Single builds the payload for one table. singleSheet marks the per-sheet
// fallback variant, where the model must return a result for this sheet only.
func (p *PromptBuilder) Single(data string, singleSheet bool) string {
	var b strings.Builder
	b.WriteString(singleTemplate)
	if singleSheet {
		b.WriteString("\nIMPORTANT: You are converting a SINGLE sheet. Return the result for this sheet only.")
	}
	b.WriteByte('\n')
	p.writeExtra(&b)
	b.WriteString("\nHere is the file data:\n\n")
	b.WriteString(data)
	return b.String()
}

func (p *PromptBuilder) writeExtra(b *strings.Builder) {
	if p.Extra != "" {
		b.WriteString("\nADDITIONAL INSTRUCTIONS:\n")
		b.WriteString(p.Extra)
		b.WriteByte('\n')
	}
}
