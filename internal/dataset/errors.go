package dataset

import "errors"

// Sentinel errors shared by the loader, transformations and analysis code.
// Callers wrap them with context using fmt.Errorf("...: %w", err) and the
// transport layer maps them to user-facing messages by errors.Is.
var (
	// ErrUnsupportedFormat is returned for file suffixes the loader cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDecodeFailure is returned when every candidate text encoding failed.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrEmptyFile is returned when an upload has no header row to parse.
	ErrEmptyFile = errors.New("empty file")

	// ErrMalformedFile is returned when a payload cannot be parsed as its declared type.
	ErrMalformedFile = errors.New("malformed file")

	// ErrInvalidSelection is returned when a required column subset is empty
	// or the chosen columns are not valid for the operation.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrNoColumnsSelected is returned when preprocessing is asked to run
	// with neither numeric nor categorical columns.
	ErrNoColumnsSelected = errors.New("no columns selected")

	// ErrEmptyColumn is returned when a statistic needs at least one
	// non-missing value and the column has none.
	ErrEmptyColumn = errors.New("column contains only missing values")

	// ErrColumnNotFound is returned when a referenced column does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrNotNumeric is returned when a numeric operation targets a categorical column.
	ErrNotNumeric = errors.New("column is not numeric")

	// ErrInvalidOption is returned for out-of-range or unknown option values.
	ErrInvalidOption = errors.New("invalid option")

	// ErrShapeMismatch is returned when columns of a table have different lengths.
	ErrShapeMismatch = errors.New("column length mismatch")
)
