package tabular

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// ReadWorkbook loads every sheet of an Excel workbook into Tables, in sheet
// order. Blank rows and columns are pruned per sheet. Sheets that end up empty
// after pruning are kept (the coordinator reports them rather than silently
// dropping a sheet the user can see in Excel).
func ReadWorkbook(path string) ([]Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls":
		return readLegacyWorkbook(path)
	default:
		return readModernWorkbook(path)
	}
}

func readModernWorkbook(path string) ([]Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("file", path).Msg("workbook close failed")
		}
	}()

	names := f.GetSheetList()
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Rows: normalize(rows)})
	}
	log.Info().Str("file", path).Int("sheets", len(tables)).Msg("workbook loaded")
	return tables, nil
}

func readLegacyWorkbook(path string) ([]Table, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open legacy workbook: %w", err)
	}

	tables := make([]Table, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := 0; c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		tables = append(tables, Table{Name: sheet.Name, Rows: normalize(rows)})
	}
	log.Info().Str("file", path).Int("sheets", len(tables)).Msg("legacy workbook loaded")
	return tables, nil
}
