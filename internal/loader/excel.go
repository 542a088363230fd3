package loader

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

// loadXLSX reads the first sheet of a workbook. The first row is the header.
func loadXLSX(data []byte) (*dataset.Table, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: open workbook: %v", dataset.ErrMalformedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", fmt.Errorf("%w: workbook has no sheets", dataset.ErrEmptyFile)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("%w: read sheet %q: %v", dataset.ErrMalformedFile, sheet, err)
	}
	t, err := sheetTable(rows)
	if err != nil {
		return nil, "", err
	}
	return t, sheet, nil
}

// loadXLS reads the first sheet of a legacy BIFF workbook.
func loadXLS(data []byte) (*dataset.Table, string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, "", fmt.Errorf("%w: open xls: %v", dataset.ErrMalformedFile, err)
	}
	if wb.NumSheets() == 0 {
		return nil, "", fmt.Errorf("%w: workbook has no sheets", dataset.ErrEmptyFile)
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, "", fmt.Errorf("%w: first sheet unreadable", dataset.ErrMalformedFile)
	}

	var rows [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rec := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			rec[j] = row.Col(j)
		}
		rows = append(rows, rec)
	}
	t, err := sheetTable(rows)
	if err != nil {
		return nil, "", err
	}
	return t, ws.Name, nil
}

// sheetTable treats the first row as the header. Trailing blank rows are
// dropped; wide rows add unnamed columns instead of failing.
func sheetTable(rows [][]string) (*dataset.Table, error) {
	for len(rows) > 0 && blankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", dataset.ErrEmptyFile)
	}
	return buildTable(rows[0], rows[1:], false)
}

func blankRow(rec []string) bool {
	for _, s := range rec {
		if s != "" {
			return false
		}
	}
	return true
}
