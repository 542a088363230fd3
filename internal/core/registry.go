package core

import (
	"fmt"
	"sort"
	"sync"
)

// Operation is one action a module offers. The set is closed.
type Operation string

const (
	OpLoad            Operation = "load"
	OpClear           Operation = "clear"
	OpOverview        Operation = "overview"
	OpMissingSummary  Operation = "missing_summary"
	OpDropColumns     Operation = "drop_missing_columns"
	OpDropRows        Operation = "drop_missing_rows"
	OpImpute          Operation = "impute_missing"
	OpUnivariate      Operation = "univariate"
	OpBivariate       Operation = "bivariate"
	OpCorrelation     Operation = "correlation"
	OpInspectOutliers Operation = "inspect_outliers"
	OpTreatOutliers   Operation = "treat_outliers"
	OpPreprocess      Operation = "preprocess"
	OpApplyRecipe     Operation = "apply_recipe"
	OpExport          Operation = "export"
)

// Mutates reports whether op replaces the session dataset.
func (op Operation) Mutates() bool {
	switch op {
	case OpLoad, OpClear, OpDropColumns, OpDropRows, OpImpute, OpTreatOutliers, OpPreprocess, OpApplyRecipe:
		return true
	default:
		return false
	}
}

// Module is one page of the workbench.
type Module struct {
	Key         string      `json:"key"`
	Order       int         `json:"order"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Operations  []Operation `json:"operations"`

	// NeedsDataset is false only for the upload module.
	NeedsDataset bool `json:"needs_dataset"`
}

var (
	registry   = make(map[string]Module)
	registryMu sync.RWMutex
)

// Register adds a module. Panics if the key or one of its operations is
// already taken.
func Register(m Module) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[m.Key]; exists {
		panic(fmt.Sprintf("module already registered: %s", m.Key))
	}
	for _, other := range registry {
		for _, op := range other.Operations {
			for _, mine := range m.Operations {
				if op == mine {
					panic(fmt.Sprintf("operation %s registered by %s and %s", op, other.Key, m.Key))
				}
			}
		}
	}
	registry[m.Key] = m
}

// ModuleByKey returns a module by key.
func ModuleByKey(key string) (Module, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	m, ok := registry[key]
	return m, ok
}

// ModuleFor returns the module offering op.
func ModuleFor(op Operation) (Module, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, m := range registry {
		for _, o := range m.Operations {
			if o == op {
				return m, true
			}
		}
	}
	return Module{}, false
}

// Modules returns every module in page order.
func Modules() []Module {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Module, 0, len(registry))
	for _, m := range registry {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Key < result[j].Key
	})
	return result
}

func init() {
	Register(Module{Key: "upload", Order: 1, Title: "Upload",
		Description: "Load a CSV, TXT, Excel or Parquet file into the session",
		Operations:  []Operation{OpLoad, OpClear}})
	Register(Module{Key: "overview", Order: 2, Title: "Overview", NeedsDataset: true,
		Description: "Shape, column types, duplicates and descriptive statistics",
		Operations:  []Operation{OpOverview}})
	Register(Module{Key: "missing", Order: 3, Title: "Missing Values", NeedsDataset: true,
		Description: "Summarize, drop or impute missing values",
		Operations:  []Operation{OpMissingSummary, OpDropColumns, OpDropRows, OpImpute}})
	Register(Module{Key: "univariate", Order: 4, Title: "Univariate", NeedsDataset: true,
		Description: "Distribution of a single column",
		Operations:  []Operation{OpUnivariate}})
	Register(Module{Key: "bivariate", Order: 5, Title: "Bivariate", NeedsDataset: true,
		Description: "Relationship between two columns",
		Operations:  []Operation{OpBivariate}})
	Register(Module{Key: "correlation", Order: 6, Title: "Correlation", NeedsDataset: true,
		Description: "Correlation matrix of the numeric columns",
		Operations:  []Operation{OpCorrelation}})
	Register(Module{Key: "outliers", Order: 7, Title: "Outliers", NeedsDataset: true,
		Description: "Detect and cap or remove IQR outliers",
		Operations:  []Operation{OpInspectOutliers, OpTreatOutliers}})
	Register(Module{Key: "preprocessing", Order: 8, Title: "Preprocessing", NeedsDataset: true,
		Description: "Impute, scale and one-hot encode selected columns",
		Operations:  []Operation{OpPreprocess}})
	Register(Module{Key: "recipes", Order: 9, Title: "Recipes", NeedsDataset: true,
		Description: "Replay a saved sequence of treatments",
		Operations:  []Operation{OpApplyRecipe}})
	Register(Module{Key: "export", Order: 10, Title: "Export", NeedsDataset: true,
		Description: "Download the dataset, a JSON report or a ZIP package",
		Operations:  []Operation{OpExport}})
}
