package loader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

func loadParquet(ctx context.Context, data []byte) (*dataset.Table, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty parquet file", dataset.ErrEmptyFile)
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet: %v", dataset.ErrMalformedFile, err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("%w: arrow reader: %v", dataset.ErrMalformedFile, err)
	}

	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read parquet table: %v", dataset.ErrMalformedFile, err)
	}
	defer tbl.Release()

	fields := tbl.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	names = columnNames(names, len(names))

	rows := int(tbl.NumRows())
	cols := make([]dataset.Column, len(fields))
	for i := range fields {
		vals := make([]dataset.Value, 0, rows)
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			vals = appendArrowValues(vals, chunk)
		}
		cols[i] = dataset.Column{Name: names[i], Values: vals}
	}
	return dataset.NewTable(cols)
}

// appendArrowValues converts one arrow chunk into cells. Numeric arrow
// types become numbers; everything else is read through its string form.
func appendArrowValues(dst []dataset.Value, arr arrow.Array) []dataset.Value {
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			dst = append(dst, dataset.Null())
			continue
		}
		switch a := arr.(type) {
		case *array.Float64:
			dst = append(dst, dataset.Number(a.Value(i)))
		case *array.Float32:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Int8:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Int16:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Int32:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Int64:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Uint8:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Uint16:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Uint32:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.Uint64:
			dst = append(dst, dataset.Number(float64(a.Value(i))))
		case *array.String:
			dst = append(dst, dataset.Text(a.Value(i)))
		case *array.LargeString:
			dst = append(dst, dataset.Text(a.Value(i)))
		case *array.Boolean:
			if a.Value(i) {
				dst = append(dst, dataset.Text("True"))
			} else {
				dst = append(dst, dataset.Text("False"))
			}
		default:
			dst = append(dst, dataset.Text(arr.ValueStr(i)))
		}
	}
	return dst
}
