package dataset

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Stable metadata keys. Every component that rewrites metadata preserves them.
const (
	KeyFileName         = "file_name"
	KeyFileType         = "file_type"
	KeyEncoding         = "encoding"
	KeyRows             = "rows"
	KeyCols             = "cols"
	KeySheet            = "sheet"
	KeyOutlierTreatment = "outlier_treatment"
	KeyPreprocessing    = "preprocessing"
	KeyMissingTreatment = "missing_treatment"
)

var knownKeys = tokenSet(
	KeyFileName, KeyFileType, KeyEncoding, KeyRows, KeyCols, KeySheet,
	KeyOutlierTreatment, KeyPreprocessing, KeyMissingTreatment,
)

// IsKnownKey reports whether key is one of the typed metadata fields.
func IsKnownKey(key string) bool { return knownKeys[key] }

// OutlierTreatment records an applied IQR treatment.
type OutlierTreatment struct {
	Column string  `json:"column"`
	Method string  `json:"method"`
	Action string  `json:"action"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// MissingTreatment records the last applied missing-value treatment.
type MissingTreatment struct {
	Operation       string   `json:"operation"`
	Threshold       *float64 `json:"threshold,omitempty"`
	Rule            string   `json:"rule,omitempty"`
	Columns         []string `json:"columns,omitempty"`
	NumericStrategy string   `json:"numeric_strategy,omitempty"`
	CategoricalFill string   `json:"categorical_fill,omitempty"`
	ColumnsDropped  []string `json:"columns_dropped,omitempty"`
	RowsRemoved     int      `json:"rows_removed,omitempty"`
	CellsFilled     int      `json:"cells_filled,omitempty"`
}

// PreprocessingRecord records a fitted preprocessing pipeline. Fitted holds
// the learned parameters so the same transformation can be reapplied.
type PreprocessingRecord struct {
	NumericCols     []string        `json:"numeric_cols"`
	CategoricalCols []string        `json:"categorical_cols"`
	NumImputation   string          `json:"num_imputation"`
	CatImputation   string          `json:"cat_imputation"`
	Scaler          string          `json:"scaler"`
	NumFillValue    *float64        `json:"num_fill_value,omitempty"`
	CatFillValue    *string         `json:"cat_fill_value,omitempty"`
	Fitted          *FittedPipeline `json:"fitted,omitempty"`
}

// FittedPipeline holds per-column parameters learned during fit.
type FittedPipeline struct {
	Numeric     []FittedNumeric     `json:"numeric"`
	Categorical []FittedCategorical `json:"categorical"`
}

// FittedNumeric maps x to (fill-if-missing(x) - Center) / Scale.
type FittedNumeric struct {
	Column string  `json:"column"`
	Fill   float64 `json:"fill"`
	Center float64 `json:"center"`
	Scale  float64 `json:"scale"`
}

// FittedCategorical holds the imputation value and sorted category levels.
type FittedCategorical struct {
	Column string   `json:"column"`
	Fill   string   `json:"fill"`
	Levels []string `json:"levels"`
}

// Metadata is the provenance and treatment history of a table. Known keys
// are typed fields; anything else lives in Extensions. At the JSON boundary
// it is one flat object.
type Metadata struct {
	FileName string
	FileType string
	Encoding *string
	Rows     int
	Cols     int
	Sheet    string

	OutlierTreatment *OutlierTreatment
	Preprocessing    *PreprocessingRecord
	MissingTreatment *MissingTreatment

	Extensions map[string]any
}

// Clone returns a copy whose Extensions map can be changed independently.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extensions != nil {
		out.Extensions = maps.Clone(m.Extensions)
	}
	if m.Encoding != nil {
		enc := *m.Encoding
		out.Encoding = &enc
	}
	return out
}

// WithShape returns a copy with rows and cols taken from t.
func (m Metadata) WithShape(t *Table) Metadata {
	out := m.Clone()
	out.Rows = t.Rows()
	out.Cols = t.Cols()
	return out
}

// WithOutlierTreatment returns a copy carrying rec. Other keys are preserved.
func (m Metadata) WithOutlierTreatment(rec OutlierTreatment) Metadata {
	out := m.Clone()
	out.OutlierTreatment = &rec
	return out
}

// WithPreprocessing returns a copy carrying rec. Other keys are preserved.
func (m Metadata) WithPreprocessing(rec PreprocessingRecord) Metadata {
	out := m.Clone()
	out.Preprocessing = &rec
	return out
}

// WithMissingTreatment returns a copy carrying rec. Other keys are preserved.
func (m Metadata) WithMissingTreatment(rec MissingTreatment) Metadata {
	out := m.Clone()
	out.MissingTreatment = &rec
	return out
}

// WithExtension returns a copy with an extension entry. Known keys are
// rejected so extensions can never shadow typed fields.
func (m Metadata) WithExtension(key string, value any) (Metadata, error) {
	if IsKnownKey(key) {
		return m, fmt.Errorf("%w: metadata key %q is reserved", ErrInvalidOption, key)
	}
	out := m.Clone()
	if out.Extensions == nil {
		out.Extensions = make(map[string]any)
	}
	out.Extensions[key] = value
	return out, nil
}

// Map flattens the metadata into the untyped form used at the boundary.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extensions)+9)
	for k, v := range m.Extensions {
		if !IsKnownKey(k) {
			out[k] = v
		}
	}
	out[KeyFileName] = m.FileName
	out[KeyFileType] = m.FileType
	if m.Encoding != nil {
		out[KeyEncoding] = *m.Encoding
	} else {
		out[KeyEncoding] = nil
	}
	out[KeyRows] = m.Rows
	out[KeyCols] = m.Cols
	if m.Sheet != "" {
		out[KeySheet] = m.Sheet
	}
	if m.OutlierTreatment != nil {
		out[KeyOutlierTreatment] = *m.OutlierTreatment
	}
	if m.Preprocessing != nil {
		out[KeyPreprocessing] = *m.Preprocessing
	}
	if m.MissingTreatment != nil {
		out[KeyMissingTreatment] = *m.MissingTreatment
	}
	return out
}

// MarshalJSON writes the flat form.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON reads the flat form; unknown keys land in Extensions.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Metadata
	for key, val := range raw {
		var err error
		switch key {
		case KeyFileName:
			err = json.Unmarshal(val, &out.FileName)
		case KeyFileType:
			err = json.Unmarshal(val, &out.FileType)
		case KeyEncoding:
			err = json.Unmarshal(val, &out.Encoding)
		case KeyRows:
			err = json.Unmarshal(val, &out.Rows)
		case KeyCols:
			err = json.Unmarshal(val, &out.Cols)
		case KeySheet:
			err = json.Unmarshal(val, &out.Sheet)
		case KeyOutlierTreatment:
			err = json.Unmarshal(val, &out.OutlierTreatment)
		case KeyPreprocessing:
			err = json.Unmarshal(val, &out.Preprocessing)
		case KeyMissingTreatment:
			err = json.Unmarshal(val, &out.MissingTreatment)
		default:
			var v any
			if err = json.Unmarshal(val, &v); err == nil {
				if out.Extensions == nil {
					out.Extensions = make(map[string]any)
				}
				out.Extensions[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
	}
	*m = out
	return nil
}
