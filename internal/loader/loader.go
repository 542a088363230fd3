// Package loader parses uploaded files into tables.
//
// The format is chosen from the file name suffix. Delimited text goes
// through encoding detection with a utf-8 then latin-1 fallback chain;
// spreadsheets read their first sheet; parquet files are read through
// arrow. Loading has no side effects: the caller decides what to do with
// the returned table and metadata.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

// File types recorded in metadata.
const (
	TypeCSV     = "csv"
	TypeTXT     = "txt"
	TypeXLSX    = "xlsx"
	TypeXLS     = "xls"
	TypeParquet = "parquet"
)

// SupportedSuffixes lists the accepted file suffixes, lowercase.
var SupportedSuffixes = []string{TypeCSV, TypeTXT, TypeXLSX, TypeXLS, TypeParquet}

type options struct {
	delimiter rune
}

// Option configures Load.
type Option func(*options)

// WithDelimiter sets the field separator for csv and txt files.
func WithDelimiter(d rune) Option {
	return func(o *options) {
		if d != 0 {
			o.delimiter = d
		}
	}
}

// Suffix returns the lowercase extension of name without the dot.
func Suffix(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Load parses data according to the suffix of fileName.
func Load(ctx context.Context, data []byte, fileName string, opts ...Option) (*dataset.Table, dataset.Metadata, error) {
	o := options{delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	suffix := Suffix(fileName)
	meta := dataset.Metadata{FileName: fileName, FileType: suffix}

	var (
		t   *dataset.Table
		err error
	)
	switch suffix {
	case TypeCSV, TypeTXT:
		var enc string
		t, enc, err = loadDelimited(data, o.delimiter)
		if err == nil {
			meta.Encoding = &enc
		}
	case TypeXLSX:
		t, meta.Sheet, err = loadXLSX(data)
	case TypeXLS:
		t, meta.Sheet, err = loadXLS(data)
	case TypeParquet:
		t, err = loadParquet(ctx, data)
	case "":
		return nil, dataset.Metadata{}, fmt.Errorf("%w: %q has no file extension", dataset.ErrUnsupportedFormat, fileName)
	default:
		return nil, dataset.Metadata{}, fmt.Errorf("%w: .%s", dataset.ErrUnsupportedFormat, suffix)
	}
	if err != nil {
		return nil, dataset.Metadata{}, fmt.Errorf("load %s: %w", fileName, err)
	}

	t = dataset.NormalizeNumeric(t)
	return t, meta.WithShape(t), nil
}

// buildTable turns a header and raw string records into a table. Short
// records are padded with missing cells. Records longer than the header
// are an error when strict, otherwise the header grows unnamed columns.
func buildTable(header []string, records [][]string, strict bool) (*dataset.Table, error) {
	width := len(header)
	for i, rec := range records {
		if len(rec) <= width {
			continue
		}
		if strict {
			return nil, fmt.Errorf("%w: expected %d fields in line %d, saw %d", dataset.ErrMalformedFile, len(header), i+2, len(rec))
		}
		width = len(rec)
	}

	names := columnNames(header, width)
	cols := make([]dataset.Column, width)
	for c := range cols {
		vals := make([]dataset.Value, len(records))
		for r, rec := range records {
			if c < len(rec) {
				vals[r] = dataset.ParseCell(rec[c])
			}
		}
		cols[c] = dataset.Column{Name: names[c], Values: vals}
	}
	return dataset.NewTable(cols)
}

// columnNames fills blank header cells with "Unnamed: i" and suffixes
// repeats with ".1", ".2", ... so every column has a distinct name.
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for n := 1; seen[name]; n++ {
			name = base + "." + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
