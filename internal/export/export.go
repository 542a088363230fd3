// Package export renders the current dataset into downloadable payloads:
// delimited text, a JSON analysis report, an Excel workbook, or a ZIP
// package holding the CSV and the report together.
//
// Payloads are built only when asked for; nothing is cached.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

// Format is a download type.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "xlsx"
	FormatZIP   Format = "zip"
)

// MIME types of the payloads.
const (
	MIMECSV   = "text/csv"
	MIMEJSON  = "application/json"
	MIMEExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEZIP   = "application/zip"
)

// SheetName is the worksheet the Excel export writes to.
const SheetName = "data"

// TimestampLayout formats the export timestamp, e.g. 20250131_142500.
const TimestampLayout = "20060102_150405"

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatJSON, FormatExcel, FormatZIP}

// Delimiters lists the accepted CSV separators.
var Delimiters = []rune{',', ';', '\t', '|'}

// ParseFormat validates a raw format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: export format %q", dataset.ErrInvalidOption, s)
}

// ParseDelimiter accepts a single separator character or one of the names
// comma, semicolon, tab and pipe.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "comma", ",":
		return ',', nil
	case "semicolon", ";":
		return ';', nil
	case "tab", "\t", `\t`:
		return '\t', nil
	case "pipe", "|":
		return '|', nil
	}
	return 0, fmt.Errorf("%w: delimiter %q", dataset.ErrInvalidOption, s)
}

// Options controls the dataset encodings.
type Options struct {
	Delimiter    rune
	IncludeIndex bool
}

func (o Options) resolve() (Options, error) {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	for _, d := range Delimiters {
		if o.Delimiter == d {
			return o, nil
		}
	}
	return o, fmt.Errorf("%w: delimiter %q", dataset.ErrInvalidOption, o.Delimiter)
}

// Payload is a named downloadable document.
type Payload struct {
	FileName string
	MIME     string
	Data     []byte
}

// Timestamp renders now in the export file name layout.
func Timestamp(now time.Time) string {
	return now.Format(TimestampLayout)
}

// Build renders t in the requested format. now fixes the timestamp used in
// file names and in the report.
func Build(t *dataset.Table, meta dataset.Metadata, format Format, opts Options, now time.Time) (Payload, error) {
	opts, err := opts.resolve()
	if err != nil {
		return Payload{}, err
	}
	ts := Timestamp(now)

	switch format {
	case FormatCSV:
		data, err := CSV(t, opts)
		if err != nil {
			return Payload{}, err
		}
		return Payload{FileName: "dataset_" + ts + ".csv", MIME: MIMECSV, Data: data}, nil

	case FormatJSON:
		data, err := ReportJSON(BuildReport(t, meta, now))
		if err != nil {
			return Payload{}, fmt.Errorf("encode report: %w", err)
		}
		return Payload{FileName: "report_" + ts + ".json", MIME: MIMEJSON, Data: data}, nil

	case FormatExcel:
		data, err := Excel(t, opts)
		if err != nil {
			return Payload{}, err
		}
		return Payload{FileName: "dataset_" + ts + ".xlsx", MIME: MIMEExcel, Data: data}, nil

	case FormatZIP:
		data, err := Package(t, meta, opts, now)
		if err != nil {
			return Payload{}, err
		}
		return Payload{FileName: "export_package_" + ts + ".zip", MIME: MIMEZIP, Data: data}, nil

	default:
		return Payload{}, fmt.Errorf("%w: export format %q", dataset.ErrInvalidOption, format)
	}
}

// CSV writes t as delimited text with a header row. With IncludeIndex a
// leading unnamed column holds the 0-based row position.
func CSV(t *dataset.Table, opts Options) ([]byte, error) {
	opts, err := opts.resolve()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = opts.Delimiter

	width := t.Cols()
	if opts.IncludeIndex {
		width++
	}
	record := make([]string, 0, width)

	if opts.IncludeIndex {
		record = append(record, "")
	}
	record = append(record, t.Names()...)
	if err := w.Write(record); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for r := 0; r < t.Rows(); r++ {
		record = record[:0]
		if opts.IncludeIndex {
			record = append(record, strconv.Itoa(r))
		}
		for c := 0; c < t.Cols(); c++ {
			record = append(record, t.Value(r, c).String())
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", r, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Excel writes t to a single worksheet named "data". Numbers are stored as
// numeric cells and missing cells are left blank.
func Excel(t *dataset.Table, opts Options) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, fmt.Errorf("open sheet writer: %w", err)
	}

	offset := 0
	if opts.IncludeIndex {
		offset = 1
	}
	row := make([]any, t.Cols()+offset)
	for c, name := range t.Names() {
		row[c+offset] = name
	}
	if err := sw.SetRow("A1", row); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for r := 0; r < t.Rows(); r++ {
		if opts.IncludeIndex {
			row[0] = r
		}
		for c := 0; c < t.Cols(); c++ {
			row[c+offset] = excelCell(t.Value(r, c))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func excelCell(v dataset.Value) any {
	switch v.Kind() {
	case dataset.KindNull:
		return nil
	case dataset.KindNumber:
		f, _ := v.Float()
		return f
	default:
		return v.String()
	}
}

// Package zips the CSV export, the JSON report and a README manifest.
func Package(t *dataset.Table, meta dataset.Metadata, opts Options, now time.Time) ([]byte, error) {
	ts := Timestamp(now)
	csvName := "dataset_" + ts + ".csv"
	reportName := "report_" + ts + ".json"

	csvData, err := CSV(t, opts)
	if err != nil {
		return nil, err
	}
	reportData, err := ReportJSON(BuildReport(t, meta, now))
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	readme := "Export package generated at: " + ts + "\n" +
		"- " + csvName + "\n" +
		"- " + reportName + "\n"

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name string
		data []byte
	}{
		{csvName, csvData},
		{reportName, reportData},
		{"README.txt", []byte(readme)},
	}
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
