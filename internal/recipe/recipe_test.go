package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/transform"
)

func sales() (*dataset.Table, dataset.Metadata) {
	n := dataset.Number
	t := dataset.MustNewTable([]dataset.Column{
		{Name: "price", Values: []dataset.Value{n(10), n(11), n(12), dataset.Null(), n(13), n(100)}},
		{Name: "region", Values: []dataset.Value{dataset.Text("N"), dataset.Null(), dataset.Text("S"), dataset.Text("S"), dataset.Text("N"), dataset.Text("N")}},
		{Name: "notes", Values: []dataset.Value{dataset.Null(), dataset.Null(), dataset.Null(), dataset.Null(), dataset.Text("x"), dataset.Null()}},
	})
	meta := dataset.Metadata{FileName: "sales.csv", FileType: "csv"}
	return t, meta.WithShape(t)
}

const tidy = `
name: tidy
steps:
  - op: drop_missing_columns
    params: {threshold: 50}
  - op: impute_missing
    params: {numeric_strategy: median}
  - op: treat_outliers
    params: {column: price, action: cap}
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(tidy))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if r.Name != "tidy" || len(r.Steps) != 3 {
		t.Fatalf("Parse() = %+v", r)
	}
	if r.Steps[0].Op != OpDropMissingColumns {
		t.Errorf("step 0 op = %q", r.Steps[0].Op)
	}
}

func TestParse_JSON(t *testing.T) {
	doc := `{"name":"j","steps":[{"op":"drop_missing_rows","params":{"rule":"all"}}]}`
	r, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if r.Steps[0].Params["rule"] != "all" {
		t.Errorf("params = %v", r.Steps[0].Params)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{"no steps", "name: empty\n", ErrNoSteps},
		{"unknown op", "steps:\n  - op: explode\n", dataset.ErrInvalidOption},
		{"unknown param", "steps:\n  - op: drop_missing_columns\n    params: {limit: 3}\n", dataset.ErrInvalidOption},
		{"bad action", "steps:\n  - op: treat_outliers\n    params: {column: a, action: delete}\n", dataset.ErrInvalidOption},
		{"missing column", "steps:\n  - op: treat_outliers\n    params: {action: cap}\n", dataset.ErrInvalidSelection},
		{"not yaml", "steps: [", dataset.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApply(t *testing.T) {
	r, err := Parse([]byte(tidy))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tbl, meta := sales()

	out, outMeta, results, err := r.Apply(tbl, meta)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if out.Has("notes") {
		t.Error("notes (83% missing) should be dropped")
	}
	if len(results) != 3 || results[0].Cols != 2 || results[2].Rows != 6 {
		t.Errorf("results = %+v", results)
	}
	price, _ := out.Lookup("price")
	for i, v := range price.Values {
		if v.IsNull() {
			t.Errorf("price[%d] still missing", i)
		}
	}
	if f, _ := price.Values[5].Float(); f >= 100 {
		t.Errorf("price outlier = %v, want capped", f)
	}
	if region, _ := out.Lookup("region"); region.Values[1].String() != transform.DefaultCategoricalFill {
		t.Errorf("region[1] = %v, want placeholder", region.Values[1])
	}

	if outMeta.FileName != "sales.csv" || outMeta.Rows != 6 || outMeta.Cols != 2 {
		t.Errorf("meta = %+v", outMeta)
	}
	if outMeta.MissingTreatment == nil || outMeta.OutlierTreatment == nil {
		t.Error("meta should carry both treatment records")
	}
	if !tbl.Has("notes") {
		t.Error("input table must not change")
	}
}

func TestApply_PreprocessDefaultsToAllColumns(t *testing.T) {
	r := Recipe{Steps: []Step{
		{Op: OpDropMissingRows},
		{Op: OpPreprocess, Params: map[string]any{"scaler": "minmax"}},
	}}
	tbl, meta := sales()
	tbl = tbl.DropColumns("notes")

	out, outMeta, _, err := r.Apply(tbl, meta)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := strings.Join(out.Names(), ","); got != "price,region_N,region_S" {
		t.Errorf("columns = %s", got)
	}
	if outMeta.Preprocessing == nil || outMeta.Preprocessing.Scaler != "minmax" {
		t.Errorf("preprocessing = %+v", outMeta.Preprocessing)
	}
}

func TestApply_FailingStepNamesIt(t *testing.T) {
	r := Recipe{Steps: []Step{
		{Op: OpDropMissingColumns, Params: map[string]any{"threshold": 90}},
		{Op: OpTreatOutliers, Params: map[string]any{"column": "region", "action": "remove"}},
	}}
	tbl, meta := sales()

	_, _, _, err := r.Apply(tbl, meta)
	if !errors.Is(err, dataset.ErrNotNumeric) {
		t.Fatalf("Apply() error = %v, want ErrNotNumeric", err)
	}
	if !strings.Contains(err.Error(), "step 2 (treat_outliers)") {
		t.Errorf("error %q should name the step", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.yaml")
	if err := os.WriteFile(path, []byte(tidy), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err != nil {
		t.Errorf("ParseFile() error = %v", err)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ParseFile(missing) should fail")
	}
}
