package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/JonMunkholm/workbench/internal/dataset"
)

func nums(xs ...float64) []dataset.Value {
	out := make([]dataset.Value, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = dataset.Null()
		} else {
			out[i] = dataset.Number(x)
		}
	}
	return out
}

func texts(ss ...string) []dataset.Value {
	out := make([]dataset.Value, len(ss))
	for i, s := range ss {
		if s == "" {
			out[i] = dataset.Null()
		} else {
			out[i] = dataset.Text(s)
		}
	}
	return out
}

var nan = math.NaN()

func sampleTable() (*dataset.Table, dataset.Metadata) {
	t := dataset.MustNewTable([]dataset.Column{
		{Name: "age", Values: nums(10, 12, 11, 13, 1000, 9)},
		{Name: "score", Values: nums(1, nan, 3, nan, nan, 6)},
		{Name: "city", Values: texts("oslo", "", "rome", "oslo", "", "")},
		{Name: "empty", Values: nums(nan, nan, nan, nan, nan, nan)},
	})
	enc := "utf-8"
	meta := dataset.Metadata{FileName: "people.csv", FileType: "csv", Encoding: &enc}
	return t, meta.WithShape(t)
}

func TestSummarizeMissing(t *testing.T) {
	tbl, _ := sampleTable()
	s := SummarizeMissing(tbl)

	if s.TotalMissing != 12 {
		t.Errorf("TotalMissing = %d, want 12", s.TotalMissing)
	}
	if s.ColumnsWithMissing != 3 {
		t.Errorf("ColumnsWithMissing = %d, want 3", s.ColumnsWithMissing)
	}
	if want := 12.0 / 24.0; s.Ratio != want {
		t.Errorf("Ratio = %v, want %v", s.Ratio, want)
	}

	order := []string{"empty", "score", "city", "age"}
	for i, name := range order {
		if s.Columns[i].Column != name {
			t.Errorf("Columns[%d] = %q, want %q", i, s.Columns[i].Column, name)
		}
		if p := s.Columns[i].Percent; p < 0 || p > 100 {
			t.Errorf("Columns[%d].Percent = %v, outside [0, 100]", i, p)
		}
	}
	if s.Columns[0].Percent != 100 {
		t.Errorf("empty column pct = %v, want 100", s.Columns[0].Percent)
	}
}

func TestSummarizeMissing_ZeroRows(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "a", Values: []dataset.Value{}},
		{Name: "b", Values: []dataset.Value{}},
		{Name: "c", Values: []dataset.Value{}},
	})
	s := SummarizeMissing(tbl)
	if s.Ratio != 0 {
		t.Errorf("Ratio = %v, want 0", s.Ratio)
	}
	for _, c := range s.Columns {
		if c.Percent != 0 {
			t.Errorf("%s pct = %v, want 0", c.Column, c.Percent)
		}
	}
}

func TestDropColumns(t *testing.T) {
	tbl, meta := sampleTable()

	tests := []struct {
		name      string
		threshold float64
		want      []string
		wantErr   error
	}{
		{"default slider", 40, []string{"age"}, nil},
		{"keep all at 100", 100, []string{"age", "score", "city", "empty"}, nil},
		{"strictly greater", 50, []string{"age", "score", "city"}, nil},
		{"drop any missing at 0", 0, []string{"age"}, nil},
		{"below range", -1, nil, dataset.ErrInvalidOption},
		{"above range", 101, nil, dataset.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, gotMeta, err := DropColumns(tbl, meta, tt.threshold)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DropColumns() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DropColumns() error = %v", err)
			}
			got := out.Names()
			if len(got) != len(tt.want) {
				t.Fatalf("columns = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("columns = %v, want %v", got, tt.want)
					break
				}
			}
			if gotMeta.Cols != out.Cols() || gotMeta.Rows != out.Rows() {
				t.Errorf("meta shape = (%d, %d), table (%d, %d)", gotMeta.Rows, gotMeta.Cols, out.Rows(), out.Cols())
			}
			if gotMeta.MissingTreatment == nil || gotMeta.MissingTreatment.Operation != OpDropColumns {
				t.Errorf("MissingTreatment = %+v, want drop_columns", gotMeta.MissingTreatment)
			}
			if gotMeta.Encoding == nil || gotMeta.FileName != "people.csv" {
				t.Errorf("provenance keys lost: %+v", gotMeta)
			}
		})
	}

	if tbl.Cols() != 4 {
		t.Errorf("input table modified: %d cols", tbl.Cols())
	}
}

func TestDropRows(t *testing.T) {
	tbl, meta := sampleTable()

	tests := []struct {
		name     string
		cols     []string
		rule     string
		wantRows int
		wantErr  error
	}{
		{"any", []string{"score", "city"}, RuleAny, 2, nil},
		{"all", []string{"score", "city"}, RuleAll, 4, nil},
		{"no columns", nil, RuleAny, 0, dataset.ErrInvalidSelection},
		{"unknown column", []string{"nope"}, RuleAny, 0, dataset.ErrColumnNotFound},
		{"bad rule", []string{"score"}, "some", 0, dataset.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, gotMeta, err := DropRows(tbl, meta, tt.cols, tt.rule)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DropRows() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DropRows() error = %v", err)
			}
			if out.Rows() != tt.wantRows {
				t.Errorf("Rows() = %d, want %d", out.Rows(), tt.wantRows)
			}
			if gotMeta.Rows != tt.wantRows {
				t.Errorf("meta rows = %d, want %d", gotMeta.Rows, tt.wantRows)
			}
			if gotMeta.MissingTreatment.RowsRemoved != tbl.Rows()-tt.wantRows {
				t.Errorf("RowsRemoved = %d", gotMeta.MissingTreatment.RowsRemoved)
			}
		})
	}
}

func TestImpute(t *testing.T) {
	tbl, meta := sampleTable()

	tests := []struct {
		name      string
		strategy  string
		wantScore float64
	}{
		{"mean", FillMean, 10.0 / 3.0},
		{"median", FillMedian, 3},
		{"zero", FillZero, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, gotMeta, err := Impute(tbl, meta, ImputeOptions{NumericStrategy: tt.strategy})
			if err != nil {
				t.Fatalf("Impute() error = %v", err)
			}
			score, _ := out.Lookup("score")
			if f, _ := score.Values[1].Float(); math.Abs(f-tt.wantScore) > 1e-9 {
				t.Errorf("score[1] = %v, want %v", f, tt.wantScore)
			}
			city, _ := out.Lookup("city")
			if got := city.Values[1].String(); got != DefaultCategoricalFill {
				t.Errorf("city[1] = %q, want %q", got, DefaultCategoricalFill)
			}
			empty, _ := out.Lookup("empty")
			if tt.strategy == FillZero {
				if empty.Values[0].IsNull() {
					t.Error("all-missing column should be zero-filled")
				}
			} else if !empty.Values[0].IsNull() {
				t.Error("all-missing column should stay missing under mean/median")
			}
			if gotMeta.MissingTreatment.NumericStrategy != tt.strategy {
				t.Errorf("NumericStrategy = %q", gotMeta.MissingTreatment.NumericStrategy)
			}
		})
	}
}

func TestImpute_Subset(t *testing.T) {
	tbl, meta := sampleTable()
	out, _, err := Impute(tbl, meta, ImputeOptions{Columns: []string{"city"}, CategoricalFill: "?"})
	if err != nil {
		t.Fatalf("Impute() error = %v", err)
	}
	score, _ := out.Lookup("score")
	if !score.Values[1].IsNull() {
		t.Error("columns outside the subset must not change")
	}
	city, _ := out.Lookup("city")
	if city.Values[1].String() != "?" {
		t.Errorf("city[1] = %q, want ?", city.Values[1].String())
	}

	if _, _, err := Impute(tbl, meta, ImputeOptions{NumericStrategy: "mode"}); !errors.Is(err, dataset.ErrInvalidOption) {
		t.Errorf("Impute(mode) error = %v, want ErrInvalidOption", err)
	}
}

func TestIQRBounds_Example(t *testing.T) {
	b, err := IQRBounds([]float64{10, 12, 11, 13, 1000, 9})
	if err != nil {
		t.Fatalf("IQRBounds() error = %v", err)
	}
	want := Bounds{Q1: 10.25, Q3: 12.75, IQR: 2.5, Lower: 6.5, Upper: 16.5}
	if b != want {
		t.Errorf("IQRBounds() = %+v, want %+v", b, want)
	}
	if !(b.Lower <= b.Q1 && b.Q1 <= b.Q3 && b.Q3 <= b.Upper) {
		t.Errorf("bounds out of order: %+v", b)
	}

	if _, err := IQRBounds(nil); !errors.Is(err, dataset.ErrEmptyColumn) {
		t.Errorf("IQRBounds(nil) error = %v, want ErrEmptyColumn", err)
	}
}

func TestInspectOutliers(t *testing.T) {
	tbl, _ := sampleTable()
	r, err := InspectOutliers(tbl, "age")
	if err != nil {
		t.Fatalf("InspectOutliers() error = %v", err)
	}
	if r.Count != 1 || r.Total != 6 || len(r.Sample) != 1 || r.Sample[0] != 1000 {
		t.Errorf("InspectOutliers() = %+v, want one outlier 1000", r)
	}
	if math.Abs(r.Ratio-100.0/6.0) > 1e-9 {
		t.Errorf("Ratio = %v, want %v", r.Ratio, 100.0/6.0)
	}
}

func TestTreatOutliers(t *testing.T) {
	tbl, meta := sampleTable()

	capped, capMeta, err := TreatOutliers(tbl, meta, "age", ActionCap)
	if err != nil {
		t.Fatalf("TreatOutliers(cap) error = %v", err)
	}
	age, _ := capped.Lookup("age")
	if f, _ := age.Values[4].Float(); f != 16.5 {
		t.Errorf("capped age[4] = %v, want 16.5", f)
	}
	for i, v := range age.Values {
		if f, _ := v.Float(); f < 6.5 || f > 16.5 {
			t.Errorf("capped age[%d] = %v outside fences", i, f)
		}
	}
	if capped.Rows() != 6 {
		t.Errorf("cap changed row count to %d", capped.Rows())
	}
	rec := capMeta.OutlierTreatment
	if rec == nil || rec.Column != "age" || rec.Method != "IQR" || rec.Action != "cap" || rec.Lower != 6.5 || rec.Upper != 16.5 {
		t.Errorf("OutlierTreatment = %+v", rec)
	}

	removed, remMeta, err := TreatOutliers(tbl, meta, "age", ActionRemove)
	if err != nil {
		t.Fatalf("TreatOutliers(remove) error = %v", err)
	}
	if removed.Rows() != 5 || remMeta.Rows != 5 {
		t.Errorf("remove rows = %d (meta %d), want 5", removed.Rows(), remMeta.Rows)
	}

	orig, _ := tbl.Lookup("age")
	if f, _ := orig.Values[4].Float(); f != 1000 {
		t.Error("input table modified")
	}
}

func TestTreatOutliers_MissingTarget(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: nums(1, 2, 3, nan, 4, 100)},
	})
	removed, _, err := TreatOutliers(tbl, dataset.Metadata{}, "x", ActionRemove)
	if err != nil {
		t.Fatalf("TreatOutliers() error = %v", err)
	}
	if removed.Rows() != 4 {
		t.Errorf("Rows() = %d, want 4 (outlier and missing rows dropped)", removed.Rows())
	}
	for i := 0; i < removed.Rows(); i++ {
		if removed.Value(i, 0).IsNull() {
			t.Errorf("row %d still missing after remove", i)
		}
	}

	capped, _, err := TreatOutliers(tbl, dataset.Metadata{}, "x", ActionCap)
	if err != nil {
		t.Fatalf("TreatOutliers() error = %v", err)
	}
	if !capped.Value(3, 0).IsNull() {
		t.Error("cap should leave missing cells missing")
	}
}

func TestTreatOutliers_StaysWithinBounds(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"single value", []float64{5}},
		{"constant", []float64{3, 3, 3, 3}},
		{"negatives", []float64{-50, -3, -2, -1, 0, 1, 40}},
		{"heavy ties", []float64{1, 1, 1, 1, 1, 2, 100}},
		{"two sided", []float64{-1000, 1, 2, 3, 4, 5, 1000}},
		{"mixed missing", []float64{nan, 4, nan, 5, 6, nan, 200, -90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := dataset.MustNewTable([]dataset.Column{{Name: "x", Values: nums(tt.values...)}})
			xs, _ := dataset.Floats(tbl.Column(0).Values)
			b, err := IQRBounds(xs)
			if err != nil {
				t.Fatalf("IQRBounds() error = %v", err)
			}
			if !(b.Lower <= b.Q1 && b.Q1 <= b.Q3 && b.Q3 <= b.Upper) {
				t.Errorf("bounds out of order: %+v", b)
			}
			inside := 0
			for _, x := range xs {
				if !b.Outside(x) {
					inside++
				}
			}

			capped, _, err := TreatOutliers(tbl, dataset.Metadata{}, "x", ActionCap)
			if err != nil {
				t.Fatalf("TreatOutliers(cap) error = %v", err)
			}
			if capped.Rows() != tbl.Rows() {
				t.Errorf("cap rows = %d, want %d", capped.Rows(), tbl.Rows())
			}
			for i := 0; i < capped.Rows(); i++ {
				v := capped.Value(i, 0)
				if math.IsNaN(tt.values[i]) {
					if !v.IsNull() {
						t.Errorf("capped[%d] = %v, want missing", i, v)
					}
					continue
				}
				if f, ok := v.Float(); !ok || b.Outside(f) {
					t.Errorf("capped[%d] = %v outside [%v, %v]", i, v, b.Lower, b.Upper)
				}
			}

			removed, _, err := TreatOutliers(tbl, dataset.Metadata{}, "x", ActionRemove)
			if err != nil {
				t.Fatalf("TreatOutliers(remove) error = %v", err)
			}
			if removed.Rows() != inside {
				t.Errorf("remove rows = %d, want %d", removed.Rows(), inside)
			}
			for i := 0; i < removed.Rows(); i++ {
				if f, ok := removed.Value(i, 0).Float(); !ok || b.Outside(f) {
					t.Errorf("removed[%d] = %v outside [%v, %v]", i, removed.Value(i, 0), b.Lower, b.Upper)
				}
			}
		})
	}
}

func TestTreatOutliers_Errors(t *testing.T) {
	tbl, meta := sampleTable()

	tests := []struct {
		name    string
		col     string
		action  OutlierAction
		wantErr error
	}{
		{"unknown column", "nope", ActionCap, dataset.ErrColumnNotFound},
		{"categorical", "city", ActionCap, dataset.ErrNotNumeric},
		{"all missing", "empty", ActionRemove, dataset.ErrEmptyColumn},
		{"bad action", "age", "trim", dataset.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := TreatOutliers(tbl, meta, tt.col, tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("TreatOutliers() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPreprocess_StandardAndOneHot(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: nums(1, 2, nan, 5)},
		{Name: "c", Values: texts("b", "a", "", "b")},
		{Name: "drop", Values: texts("z", "z", "z", "z")},
	})

	out, meta, err := Preprocess(tbl, dataset.Metadata{FileName: "f.csv"}, PreprocessOptions{
		NumericCols:     []string{"x"},
		CategoricalCols: []string{"c"},
	})
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}

	wantNames := []string{"x", "c_a", "c_b"}
	got := out.Names()
	if len(got) != len(wantNames) {
		t.Fatalf("Names() = %v, want %v", got, wantNames)
	}
	for i := range wantNames {
		if got[i] != wantNames[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], wantNames[i])
		}
	}
	if out.Rows() != tbl.Rows() {
		t.Errorf("Rows() = %d, want %d", out.Rows(), tbl.Rows())
	}

	// x imputed with mean 8/3, then standardized: mean 0.
	x, _ := out.Lookup("x")
	sum := 0.0
	for _, v := range x.Values {
		f, ok := v.Float()
		if !ok {
			t.Fatal("numeric output contains missing")
		}
		sum += f
	}
	if math.Abs(sum) > 1e-9 {
		t.Errorf("standardized sum = %v, want 0", sum)
	}

	// Missing c filled with the most frequent level "b".
	cb, _ := out.Lookup("c_b")
	if f, _ := cb.Values[2].Float(); f != 1 {
		t.Errorf("c_b[2] = %v, want 1", f)
	}

	rec := meta.Preprocessing
	if rec == nil || rec.Scaler != ScalerStandard || rec.NumImputation != NumImputeMean || rec.CatImputation != CatImputeMostFrequent {
		t.Fatalf("Preprocessing = %+v", rec)
	}
	if rec.Fitted == nil || len(rec.Fitted.Categorical[0].Levels) != 2 {
		t.Errorf("fitted = %+v", rec.Fitted)
	}
	if meta.FileName != "f.csv" || meta.Cols != 3 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestPreprocess_Scalers(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: nums(0, 5, 10)},
		{Name: "k", Values: nums(7, 7, 7)},
	})

	tests := []struct {
		scaler string
		want   []float64
	}{
		{ScalerMinMax, []float64{0, 0.5, 1}},
		{ScalerRobust, []float64{-1, 0, 1}},
		{ScalerNone, []float64{0, 5, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.scaler, func(t *testing.T) {
			out, _, err := Preprocess(tbl, dataset.Metadata{}, PreprocessOptions{
				NumericCols: []string{"x", "k"},
				Scaler:      tt.scaler,
			})
			if err != nil {
				t.Fatalf("Preprocess() error = %v", err)
			}
			for i, want := range tt.want {
				if f, _ := out.Value(i, 0).Float(); math.Abs(f-want) > 1e-9 {
					t.Errorf("x[%d] = %v, want %v", i, f, want)
				}
			}
			if tt.scaler != ScalerNone {
				if f, _ := out.Value(0, 1).Float(); f != 0 {
					t.Errorf("constant column scaled to %v, want 0", f)
				}
			}
		})
	}
}

func TestPreprocess_Constants(t *testing.T) {
	tbl := dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: nums(nan, 4)},
		{Name: "c", Values: texts("", "a")},
	})
	fill := -1.0
	catFill := "none"
	out, meta, err := Preprocess(tbl, dataset.Metadata{}, PreprocessOptions{
		NumericCols:     []string{"x"},
		CategoricalCols: []string{"c"},
		NumImputation:   NumImputeConstant,
		NumFillValue:    &fill,
		CatImputation:   CatImputeConstant,
		CatFillValue:    &catFill,
		Scaler:          ScalerNone,
	})
	if err != nil {
		t.Fatalf("Preprocess() error = %v", err)
	}
	if f, _ := out.Value(0, 0).Float(); f != -1 {
		t.Errorf("x[0] = %v, want -1", f)
	}
	if !out.Has("c_none") || !out.Has("c_a") {
		t.Errorf("Names() = %v, want c_a and c_none", out.Names())
	}
	if meta.Preprocessing.NumFillValue == nil || *meta.Preprocessing.NumFillValue != -1 {
		t.Errorf("NumFillValue = %v", meta.Preprocessing.NumFillValue)
	}
}

func TestPreprocess_Errors(t *testing.T) {
	tbl, meta := sampleTable()

	tests := []struct {
		name    string
		opts    PreprocessOptions
		wantErr error
	}{
		{"nothing selected", PreprocessOptions{}, dataset.ErrNoColumnsSelected},
		{"overlap", PreprocessOptions{NumericCols: []string{"age"}, CategoricalCols: []string{"age"}}, dataset.ErrInvalidSelection},
		{"categorical as numeric", PreprocessOptions{NumericCols: []string{"city"}}, dataset.ErrNotNumeric},
		{"all missing mean", PreprocessOptions{NumericCols: []string{"empty"}}, dataset.ErrEmptyColumn},
		{"unknown scaler", PreprocessOptions{NumericCols: []string{"age"}, Scaler: "log"}, dataset.ErrInvalidOption},
		{"unknown column", PreprocessOptions{CategoricalCols: []string{"nope"}}, dataset.ErrColumnNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Preprocess(tbl, meta, tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("Preprocess() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipeline_ReapplyFromRecord(t *testing.T) {
	train := dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: nums(1, 3)},
		{Name: "c", Values: texts("a", "b")},
	})
	p, err := FitPipeline(train, PreprocessOptions{NumericCols: []string{"x"}, CategoricalCols: []string{"c"}})
	if err != nil {
		t.Fatalf("FitPipeline() error = %v", err)
	}

	again, err := PipelineFromRecord(p.Record())
	if err != nil {
		t.Fatalf("PipelineFromRecord() error = %v", err)
	}

	fresh := dataset.MustNewTable([]dataset.Column{
		{Name: "x", Values: nums(2, nan)},
		{Name: "c", Values: texts("z", "a")},
	})
	out, err := again.Transform(fresh)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	// Unknown category "z" encodes as all zeros.
	for c := 1; c < out.Cols(); c++ {
		if f, _ := out.Value(0, c).Float(); f != 0 {
			t.Errorf("%s[0] = %v, want 0 for unseen category", out.Names()[c], f)
		}
	}
	// x = 2 is the training mean.
	if f, _ := out.Value(0, 0).Float(); f != 0 {
		t.Errorf("x[0] = %v, want 0", f)
	}

	if _, err := PipelineFromRecord(dataset.PreprocessingRecord{}); !errors.Is(err, dataset.ErrInvalidOption) {
		t.Errorf("PipelineFromRecord(empty) error = %v, want ErrInvalidOption", err)
	}
}
