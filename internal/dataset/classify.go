package dataset

// ColumnKind is the analytical type of a column.
type ColumnKind uint8

const (
	Numeric ColumnKind = iota
	Categorical
)

func (k ColumnKind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// MarshalText lets kinds appear as "numeric" / "categorical" in JSON.
func (k ColumnKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// naTokens are the cell spellings read as missing on load.
var naTokens = tokenSet(
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
)

func tokenSet(tokens ...string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// ParseCell turns a raw text field into a cell, mapping NA spellings to missing.
func ParseCell(raw string) Value {
	if naTokens[raw] {
		return Null()
	}
	return Text(raw)
}

// Classify reports Numeric when every non-missing value is numeric-coercible.
// A column with no non-missing values is Numeric.
func Classify(values []Value) ColumnKind {
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if _, ok := v.Float(); !ok {
			return Categorical
		}
	}
	return Numeric
}

// Kinds classifies every column of t, in column order.
func (t *Table) Kinds() []ColumnKind {
	kinds := make([]ColumnKind, len(t.cols))
	for i, c := range t.cols {
		kinds[i] = Classify(c.Values)
	}
	return kinds
}

// NumericColumns returns the names of the numeric columns of t.
func (t *Table) NumericColumns() []string {
	var names []string
	for _, c := range t.cols {
		if Classify(c.Values) == Numeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// CategoricalColumns returns the names of the categorical columns of t.
func (t *Table) CategoricalColumns() []string {
	var names []string
	for _, c := range t.cols {
		if Classify(c.Values) == Categorical {
			names = append(names, c.Name)
		}
	}
	return names
}

// Floats returns the numeric readings of the non-missing cells of values
// together with their row positions.
func Floats(values []Value) (xs []float64, rows []int) {
	xs = make([]float64, 0, len(values))
	rows = make([]int, 0, len(values))
	for i, v := range values {
		if f, ok := v.Float(); ok {
			xs = append(xs, f)
			rows = append(rows, i)
		}
	}
	return xs, rows
}

// NormalizeNumeric converts text cells of numeric columns into number cells
// so downstream code sees a uniform representation.
func NormalizeNumeric(t *Table) *Table {
	cols := make([]Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c
		if Classify(c.Values) != Numeric {
			continue
		}
		converted := false
		vals := make([]Value, len(c.Values))
		for j, v := range c.Values {
			if v.Kind() == KindText {
				f, _ := v.Float()
				vals[j] = Number(f)
				converted = true
				continue
			}
			vals[j] = v
		}
		if converted {
			cols[i] = Column{Name: c.Name, Values: vals}
		}
	}
	return &Table{cols: cols, index: t.index, rows: t.rows}
}
