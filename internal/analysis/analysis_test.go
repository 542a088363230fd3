package analysis

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

func num(x float64) dataset.Value { return dataset.Number(x) }
func txt(s string) dataset.Value  { return dataset.Text(s) }

var null = dataset.Null()

func fixture() *dataset.Table {
	return dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: []dataset.Value{num(1), num(2), num(3), num(4), num(1)}},
		{Name: "y", Values: []dataset.Value{num(2), num(4), num(6), null, num(2)}},
		{Name: "g", Values: []dataset.Value{txt("a"), txt("b"), txt("a"), txt("b"), txt("a")}},
		{Name: "h", Values: []dataset.Value{txt("u"), txt("u"), txt("v"), null, txt("u")}},
	})
}

func TestSummarize(t *testing.T) {
	o := Summarize(fixture())

	if o.Rows != 5 || o.Cols != 4 {
		t.Errorf("shape = (%d, %d), want (5, 4)", o.Rows, o.Cols)
	}
	if o.NumericCols != 2 || o.CategoricalCols != 2 {
		t.Errorf("kinds = %d numeric, %d categorical, want 2 and 2", o.NumericCols, o.CategoricalCols)
	}
	if o.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", o.Duplicates)
	}
	if o.Columns[0].Column != "x" || o.Columns[0].Unique != 4 {
		t.Errorf("Columns[0] = %+v, want x with 4 unique", o.Columns[0])
	}
	if len(o.Describe) != 2 || o.Describe[1].Column != "y" || o.Describe[1].Count != 4 {
		t.Errorf("Describe = %+v", o.Describe)
	}
	if o.Preview.Rows() != 5 {
		t.Errorf("Preview rows = %d, want 5", o.Preview.Rows())
	}
}

func TestCountDuplicates_KindAware(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "v", Values: []dataset.Value{num(1), txt("1"), null, null}},
	})
	if got := CountDuplicates(tbl); got != 1 {
		t.Errorf("CountDuplicates() = %d, want 1", got)
	}
}

func TestCountDuplicates_SeparatorInCell(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "a", Values: []dataset.Value{txt("x\x1fsy"), txt("x")}},
		{Name: "b", Values: []dataset.Value{txt("z"), txt("y\x1fsz")}},
	})
	if got := CountDuplicates(tbl); got != 0 {
		t.Errorf("CountDuplicates() = %d, want 0", got)
	}
}

func TestSampleIndexes(t *testing.T) {
	all := SampleIndexes(3, 10, 42)
	if !slices.Equal(all, []int{0, 1, 2}) {
		t.Errorf("SampleIndexes(3, 10) = %v, want all positions", all)
	}

	a := SampleIndexes(1000, 50, 42)
	b := SampleIndexes(1000, 50, 42)
	if !slices.Equal(a, b) {
		t.Error("same seed should give the same sample")
	}
	if len(a) != 50 || !slices.IsSorted(a) {
		t.Errorf("sample = %d positions, sorted %v", len(a), slices.IsSorted(a))
	}
	if len(slices.Compact(slices.Clone(a))) != 50 {
		t.Error("sample has repeated positions")
	}
}

func TestProfile_Numeric(t *testing.T) {
	u, err := Profile(fixture(), "y", Options{})
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if u.Kind != dataset.Numeric || u.Total != 5 || u.Missing != 1 || u.Unique != 3 {
		t.Errorf("Profile() = %+v", u)
	}
	if u.Numeric == nil {
		t.Fatal("numeric profile missing")
	}
	if u.Numeric.Mean != 3.5 || u.Numeric.Median != 3 {
		t.Errorf("mean/median = %v/%v, want 3.5/3", u.Numeric.Mean, u.Numeric.Median)
	}
	if len(u.Numeric.Histogram) != HistogramBins {
		t.Errorf("histogram bins = %d, want %d", len(u.Numeric.Histogram), HistogramBins)
	}
	if len(u.Preview) != 4 {
		t.Errorf("preview = %d values, want 4", len(u.Preview))
	}
}

func TestProfile_Categorical(t *testing.T) {
	u, err := Profile(fixture(), "h", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if u.Categorical == nil {
		t.Fatal("categorical profile missing")
	}
	want := []Frequency{
		{Category: "u", Count: 3, Percent: 60},
		{Category: "v", Count: 1, Percent: 20},
		{Category: MissingLabel, Count: 1, Percent: 20},
	}
	if !slices.Equal(u.Categorical.Frequencies, want) {
		t.Errorf("Frequencies = %+v, want %+v", u.Categorical.Frequencies, want)
	}
}

func TestProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		opts    Options
		wantErr error
	}{
		{"unknown column", "nope", Options{}, dataset.ErrColumnNotFound},
		{"sample cap too small", "x", Options{SampleCap: 10}, dataset.ErrInvalidOption},
		{"top k too large", "x", Options{TopK: 500}, dataset.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Profile(fixture(), tt.column, tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("Profile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRelate(t *testing.T) {
	tbl := fixture()

	nn, err := Relate(tbl, "x", "y", Options{})
	if err != nil {
		t.Fatalf("Relate(x, y) error = %v", err)
	}
	if nn.Kind != PairNumericNumeric || nn.Pairs != 4 {
		t.Errorf("Relate(x, y) = %+v", nn)
	}
	if math.Abs(nn.Numeric.Pearson-1) > 1e-9 || math.Abs(nn.Numeric.Spearman-1) > 1e-9 {
		t.Errorf("correlations = %v/%v, want 1/1", nn.Numeric.Pearson, nn.Numeric.Spearman)
	}

	nc, err := Relate(tbl, "g", "x", Options{})
	if err != nil {
		t.Fatalf("Relate(g, x) error = %v", err)
	}
	if nc.Kind != PairNumericCategorical || nc.Grouped.Numeric != "x" || nc.Grouped.Categorical != "g" {
		t.Fatalf("Relate(g, x) = %+v", nc)
	}
	a := nc.Grouped.Groups[0]
	if a.Category != "a" || a.Count != 3 || math.Abs(a.Mean-5.0/3.0) > 1e-9 || a.Median != 1 {
		t.Errorf("group a = %+v", a)
	}

	cc, err := Relate(tbl, "g", "h", Options{})
	if err != nil {
		t.Fatalf("Relate(g, h) error = %v", err)
	}
	want := [][]int{{2, 1}, {1, 0}}
	if cc.Kind != PairCategoricalCategorical || len(cc.Contingency.Counts) != 2 {
		t.Fatalf("Relate(g, h) = %+v", cc)
	}
	for i := range want {
		if !slices.Equal(cc.Contingency.Counts[i], want[i]) {
			t.Errorf("Counts[%d] = %v, want %v", i, cc.Contingency.Counts[i], want[i])
		}
	}

	if _, err := Relate(tbl, "x", "x", Options{}); !errors.Is(err, dataset.ErrInvalidSelection) {
		t.Errorf("Relate(x, x) error = %v, want ErrInvalidSelection", err)
	}
}

func TestCorrelate_TopPairs(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "a", Values: []dataset.Value{num(1), num(2), num(3), num(4)}},
		{Name: "b", Values: []dataset.Value{num(4), num(3), num(2), num(1)}},
		{Name: "c", Values: []dataset.Value{num(1), num(3), num(2), num(4)}},
		{Name: "k", Values: []dataset.Value{num(5), num(5), num(5), num(5)}},
		{Name: "s", Values: []dataset.Value{txt("p"), txt("q"), txt("r"), txt("s")}},
	})

	m, err := Correlate(tbl, "")
	if err != nil {
		t.Fatalf("Correlate() error = %v", err)
	}
	if !slices.Equal(m.Columns, []string{"a", "b", "c", "k"}) {
		t.Errorf("Columns = %v", m.Columns)
	}

	pairs := m.TopPairs(20)
	if len(pairs) != 3 {
		t.Fatalf("TopPairs() = %+v, want 3 defined pairs", pairs)
	}
	if pairs[0].Feature1 != "a" || pairs[0].Feature2 != "b" || pairs[0].Correlation != -1 {
		t.Errorf("TopPairs()[0] = %+v, want a/b -1", pairs[0])
	}
	for _, p := range pairs {
		if p.Feature1 == p.Feature2 {
			t.Errorf("self pair %+v", p)
		}
	}
	if got := m.TopPairs(1); len(got) != 1 {
		t.Errorf("TopPairs(1) = %d pairs", len(got))
	}

	if _, err := Correlate(tbl, "kendall"); !errors.Is(err, dataset.ErrInvalidOption) {
		t.Errorf("Correlate(kendall) error = %v, want ErrInvalidOption", err)
	}
}
