package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies what a single cell holds.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
)

// Value is one table cell: missing, a number or a piece of text.
// The zero Value is missing.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Null returns a missing cell.
func Null() Value { return Value{} }

// Number returns a numeric cell. NaN is treated as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text cell.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Kind reports what the cell holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the cell is missing.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric reading of the cell. Text cells are coerced
// when they parse as a finite number.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		return parseNumber(v.str)
	default:
		return 0, false
	}
}

// String renders the cell the way it is written to CSV: empty for missing,
// shortest round-trip form for numbers.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.str
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.str == o.str
	default:
		return true
	}
}

// Interface returns the cell as a plain Go value for JSON payloads.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.str
	default:
		return nil
	}
}

// FormatNumber formats f without exponent noise for typical magnitudes.
func FormatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseNumber accepts finite decimal numbers only; "inf" and "nan" spellings
// stay text.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

type infMarker struct {
	Inf int `json:"inf"`
}

// MarshalJSON encodes missing as null, numbers as JSON numbers and text as
// strings. Infinite numbers use {"inf":±1} since JSON has no literal for them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.num, 0) {
			sign := 1
			if v.num < 0 {
				sign = -1
			}
			return json.Marshal(infMarker{Inf: sign})
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*v = Null()
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case strings.HasPrefix(trimmed, "{"):
		var m infMarker
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = Number(math.Inf(m.Inf))
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode cell %s: %w", trimmed, err)
		}
		*v = Number(f)
	}
	return nil
}
