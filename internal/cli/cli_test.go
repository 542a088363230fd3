package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/dataset"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

const ageCSV = "id,age,city\n1,10,Oslo\n2,12,Bergen\n3,11,\n4,13,Oslo\n5,1000,Bergen\n6,9,Oslo\n"

// run executes edactl with args and an isolated home directory.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCommand(func() time.Time { return fixedNow })
	var out, errb bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errb.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)
	outDir := filepath.Join(dir, "out")

	stdout, _, err := run(t, "report", input, "--output-dir", outDir)
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	want := filepath.Join(outDir, "report_20250301_093000.json")
	if !strings.Contains(stdout, want) {
		t.Errorf("stdout = %q, want mention of %s", stdout, want)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	var report struct {
		Meta    map[string]any `json:"meta_from_session"`
		Summary struct {
			Overview struct {
				Rows int `json:"rows"`
			} `json:"overview"`
		} `json:"eda_summary"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Summary.Overview.Rows != 6 || report.Meta["file_name"] != "ages.csv" {
		t.Errorf("report = %+v", report)
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)

	tests := []struct {
		name       string
		args       []string
		wantHeader string
	}{
		{"default comma", nil, "id,age,city\n"},
		{"semicolon", []string{"--delimiter", "semicolon"}, "id;age;city\n"},
		{"index", []string{"--index"}, ",id,age,city\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"convert", input, "-o", "-"}, tt.args...)
			stdout, _, err := run(t, args...)
			if err != nil {
				t.Fatalf("convert error = %v", err)
			}
			if !strings.HasPrefix(stdout, tt.wantHeader) {
				t.Errorf("output = %q, want header %q", stdout, tt.wantHeader)
			}
		})
	}
}

func TestConvert_Errors(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)

	_, _, err := run(t, "convert", filepath.Join(dir, "missing.csv"))
	if !errors.Is(err, core.ErrNoFile) {
		t.Errorf("missing file error = %v, want ErrNoFile", err)
	}

	_, _, err = run(t, "convert", input, "-f", "pdf")
	if !errors.Is(err, dataset.ErrInvalidOption) {
		t.Errorf("bad format error = %v, want ErrInvalidOption", err)
	}

	_, _, err = run(t, "convert", writeFile(t, dir, "notes.pdf", "%PDF"))
	if !errors.Is(err, dataset.ErrUnsupportedFormat) {
		t.Errorf("pdf error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)
	rec := writeFile(t, dir, "clean.yaml", `name: clean
steps:
  - op: impute_missing
  - op: treat_outliers
    params: {column: age, action: remove}
`)
	out := filepath.Join(dir, "clean.csv")

	_, stderr, err := run(t, "apply", input, "--recipe", rec, "-o", out)
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	if !strings.Contains(stderr, "treat_outliers") {
		t.Errorf("stderr = %q, want step table", stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Errorf("lines = %d, want header + 5 rows", len(lines))
	}
	if strings.Contains(string(data), "1000") {
		t.Error("outlier row should be removed")
	}
}

func TestApply_FailingStepWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)
	rec := writeFile(t, dir, "bad.yaml", `steps:
  - op: impute_missing
  - op: treat_outliers
    params: {column: city, action: cap}
`)
	out := filepath.Join(dir, "clean.csv")

	_, _, err := run(t, "apply", input, "--recipe", rec, "-o", out)
	if !errors.Is(err, dataset.ErrNotNumeric) {
		t.Fatalf("error = %v, want ErrNotNumeric", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output should be written when a step fails")
	}
}

func TestApply_RequiresRecipe(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)
	if _, _, err := run(t, "apply", input); err == nil {
		t.Error("apply without --recipe should fail")
	}
}

func TestOutliers(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)

	stdout, _, err := run(t, "outliers", input, "--column", "age")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	var rep struct {
		Bounds struct {
			Lower float64 `json:"lower"`
			Upper float64 `json:"upper"`
		} `json:"bounds"`
		Outliers int `json:"outliers"`
	}
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if rep.Bounds.Lower != 6.5 || rep.Bounds.Upper != 16.5 || rep.Outliers != 1 {
		t.Errorf("report = %+v", rep)
	}

	stdout, _, err = run(t, "outliers", input, "--column", "age", "--action", "cap", "-o", "-")
	if err != nil {
		t.Fatalf("cap error = %v", err)
	}
	if !strings.Contains(stdout, "16.5") || strings.Contains(stdout, "1000") {
		t.Errorf("capped output = %q", stdout)
	}

	if _, _, err := run(t, "outliers", input, "--column", "age", "--action", "clip"); !errors.Is(err, dataset.ErrInvalidOption) {
		t.Errorf("bad action error = %v", err)
	}
}

func TestInputDelimiter(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "semi.csv", "id;age\n1;10\n2;12\n")

	if _, _, err := run(t, "outliers", input, "--column", "age"); !errors.Is(err, dataset.ErrColumnNotFound) {
		t.Errorf("default delimiter error = %v, want ErrColumnNotFound (comma split)", err)
	}
	if _, _, err := run(t, "outliers", input, "--column", "age", "--input-delimiter", "semicolon"); err != nil {
		t.Errorf("semicolon input error = %v", err)
	}
}

func TestSettingsSources(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "ages.csv", ageCSV)
	outDir := filepath.Join(dir, "exports")
	cfg := writeFile(t, dir, "edactl.yaml", "delimiter: pipe\noutput_dir: "+outDir+"\n")

	if _, _, err := run(t, "--config", cfg, "convert", input); err != nil {
		t.Fatalf("convert error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "dataset_20250301_093000.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "id|age|city\n") {
		t.Errorf("config delimiter not applied: %q", data)
	}

	t.Setenv("EDACTL_DELIMITER", "tab")
	cmd := newRootCommand(func() time.Time { return fixedNow })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg, "convert", input, "-o", "-"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("convert error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "id\tage\tcity\n") {
		t.Errorf("env delimiter should override the file: %q", out.String())
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := LoadSettings(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Analysis.SampleCap != 5000 || s.Analysis.Seed != 42 || s.Analysis.TopK != 15 {
		t.Errorf("analysis defaults = %+v", s.Analysis)
	}
	if s.Delimiter != "comma" || s.LogFormat != "text" {
		t.Errorf("defaults = %+v", s)
	}

	t.Setenv("EDACTL_ANALYSIS_TOP_K", "7")
	s, err = LoadSettings(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Analysis.TopK != 7 {
		t.Errorf("TopK = %d, want 7", s.Analysis.TopK)
	}

	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"log format", "EDACTL_LOG_FORMAT", "xml"},
		{"delimiter", "EDACTL_DELIMITER", "colon"},
		{"file size", "EDACTL_MAX_FILE_SIZE", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			if _, err := LoadSettings(viper.New(), ""); err == nil {
				t.Errorf("%s=%s should be rejected", tt.env, tt.val)
			}
		})
	}

	if _, err := LoadSettings(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit missing config file should fail")
	}
}
