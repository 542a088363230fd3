package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

// loadDelimited tries each candidate encoding in turn and returns the
// table together with the encoding that decoded it. Only decode errors
// move on to the next candidate; structural errors are final.
func loadDelimited(data []byte, delimiter rune) (*dataset.Table, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: no columns to parse", dataset.ErrEmptyFile)
	}

	var lastErr error
	for _, enc := range candidateEncodings(detectEncoding(data)) {
		r, err := textReader(data, enc)
		if err != nil {
			lastErr = err
			continue
		}
		t, err := parseDelimited(r, delimiter)
		if err == nil {
			return t, enc, nil
		}
		if !errors.Is(err, errDecode) {
			return nil, "", err
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w: %v", dataset.ErrDecodeFailure, lastErr)
}

func parseDelimited(r io.Reader, delimiter rune) (*dataset.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no columns to parse", dataset.ErrEmptyFile)
	}
	if err != nil {
		return nil, wrapReadErr(err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapReadErr(err)
		}
		records = append(records, rec)
	}
	return buildTable(header, records, true)
}

func wrapReadErr(err error) error {
	if errors.Is(err, errDecode) {
		return err
	}
	return fmt.Errorf("%w: %v", dataset.ErrMalformedFile, err)
}
