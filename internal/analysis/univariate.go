package analysis

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/stats"
)

// Sampling and display bounds.
const (
	DefaultSampleCap = 5000
	MinSampleCap     = 500
	MaxSampleCap     = 20000
	DefaultSeed      = 42

	DefaultTopK = 15
	MinTopK     = 5
	MaxTopK     = 50

	HistogramBins = 40
	ValuePreview  = 50

	// MissingLabel is how missing cells appear in frequency tables.
	MissingLabel = "NaN"
)

// Options bound the work done by the profiling functions. Zero fields take
// their defaults.
type Options struct {
	SampleCap int    `json:"sample_cap" mapstructure:"sample_cap"`
	Seed      uint64 `json:"seed" mapstructure:"seed"`
	TopK      int    `json:"top_k" mapstructure:"top_k"`
}

// DefaultOptions returns the standard sampling and top-K settings.
func DefaultOptions() Options {
	return Options{SampleCap: DefaultSampleCap, Seed: DefaultSeed, TopK: DefaultTopK}
}

func (o Options) resolve() (Options, error) {
	d := DefaultOptions()
	if o.SampleCap == 0 {
		o.SampleCap = d.SampleCap
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	if o.TopK == 0 {
		o.TopK = d.TopK
	}
	if o.SampleCap < MinSampleCap || o.SampleCap > MaxSampleCap {
		return o, fmt.Errorf("%w: sample cap %d outside [%d, %d]", dataset.ErrInvalidOption, o.SampleCap, MinSampleCap, MaxSampleCap)
	}
	if o.TopK < MinTopK || o.TopK > MaxTopK {
		return o, fmt.Errorf("%w: top k %d outside [%d, %d]", dataset.ErrInvalidOption, o.TopK, MinTopK, MaxTopK)
	}
	return o, nil
}

// SampleIndexes picks up to n of the positions [0, total) without
// replacement. The choice depends only on seed, and positions come back in
// ascending order.
func SampleIndexes(total, n int, seed uint64) []int {
	if total <= n {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	r := rand.New(rand.NewPCG(seed, seed))
	idx := r.Perm(total)[:n]
	slices.Sort(idx)
	return idx
}

// BoxStats are the values a box plot draws. Whiskers stop at the most
// extreme values inside the 1.5 x IQR fences.
type BoxStats struct {
	LowerWhisker float64 `json:"lower_whisker"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	UpperWhisker float64 `json:"upper_whisker"`
	Fliers       int     `json:"fliers"`
}

// NumericProfile describes a numeric column. The moments are computed on
// every value; the histogram and box use the sample.
type NumericProfile struct {
	Mean       float64     `json:"mean"`
	Std        float64     `json:"std"`
	Median     float64     `json:"median"`
	Q1         float64     `json:"q1"`
	Q3         float64     `json:"q3"`
	IQR        float64     `json:"iqr"`
	Min        float64     `json:"min"`
	Max        float64     `json:"max"`
	SampleSize int         `json:"sample_size"`
	Histogram  []stats.Bin `json:"histogram"`
	Box        *BoxStats   `json:"box,omitempty"`
}

// Frequency is one category count.
type Frequency struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Percent  float64 `json:"pct"`
}

// CategoricalProfile holds the most frequent categories.
type CategoricalProfile struct {
	TopK        int         `json:"top_k"`
	Frequencies []Frequency `json:"frequencies"`
}

// Univariate is the profile of one column.
type Univariate struct {
	Column      string              `json:"column"`
	Kind        dataset.ColumnKind  `json:"kind"`
	Total       int                 `json:"total"`
	Missing     int                 `json:"missing"`
	Unique      int                 `json:"unique"`
	Numeric     *NumericProfile     `json:"numeric,omitempty"`
	Categorical *CategoricalProfile `json:"categorical,omitempty"`
	Preview     []dataset.Value     `json:"preview"`
}

// Profile computes the univariate view of one column.
func Profile(t *dataset.Table, column string, opts Options) (Univariate, error) {
	opts, err := opts.resolve()
	if err != nil {
		return Univariate{}, err
	}
	col, ok := t.Lookup(column)
	if !ok {
		return Univariate{}, fmt.Errorf("%w: %q", dataset.ErrColumnNotFound, column)
	}

	u := Univariate{
		Column:  column,
		Kind:    dataset.Classify(col.Values),
		Total:   len(col.Values),
		Unique:  CountUnique(col.Values),
		Preview: make([]dataset.Value, 0, ValuePreview),
	}
	for _, v := range col.Values {
		if v.IsNull() {
			u.Missing++
			continue
		}
		if len(u.Preview) < ValuePreview {
			u.Preview = append(u.Preview, v)
		}
	}

	if u.Kind == dataset.Numeric {
		xs, _ := dataset.Floats(col.Values)
		u.Numeric = numericProfile(xs, opts)
	} else {
		u.Categorical = &CategoricalProfile{
			TopK:        opts.TopK,
			Frequencies: TopFrequencies(col.Values, opts.TopK),
		}
	}
	return u, nil
}

func numericProfile(xs []float64, opts Options) *NumericProfile {
	s := stats.Sorted(xs)
	lo, hi := stats.MinMax(s)
	q1 := stats.Quantile(s, 0.25)
	q3 := stats.Quantile(s, 0.75)
	p := &NumericProfile{
		Mean:   stats.Mean(s),
		Std:    stats.SampleStd(s),
		Median: stats.Quantile(s, 0.5),
		Q1:     q1,
		Q3:     q3,
		IQR:    q3 - q1,
		Min:    lo,
		Max:    hi,
	}

	idx := SampleIndexes(len(xs), opts.SampleCap, opts.Seed)
	sample := make([]float64, len(idx))
	for i, j := range idx {
		sample[i] = xs[j]
	}
	p.SampleSize = len(sample)
	p.Histogram = stats.Histogram(sample, HistogramBins)
	if len(sample) > 0 {
		p.Box = boxStats(sample)
	}
	return p
}

func boxStats(xs []float64) *BoxStats {
	s := stats.Sorted(xs)
	q1 := stats.Quantile(s, 0.25)
	q3 := stats.Quantile(s, 0.75)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	b := &BoxStats{Q1: q1, Median: stats.Quantile(s, 0.5), Q3: q3, LowerWhisker: q1, UpperWhisker: q3}
	for _, x := range s {
		if x < lower || x > upper {
			b.Fliers++
			continue
		}
		if x < b.LowerWhisker {
			b.LowerWhisker = x
		}
		if x > b.UpperWhisker {
			b.UpperWhisker = x
		}
	}
	return b
}

// TopFrequencies counts values as text, with missing cells counted under
// MissingLabel, and returns the k most frequent. Ties keep first-seen order.
func TopFrequencies(values []dataset.Value, k int) []Frequency {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		key := MissingLabel
		if !v.IsNull() {
			key = v.String()
		}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	freqs := make([]Frequency, len(order))
	for i, key := range order {
		freqs[i] = Frequency{
			Category: key,
			Count:    counts[key],
			Percent:  float64(counts[key]) / float64(len(values)) * 100,
		}
	}
	sort.SliceStable(freqs, func(a, b int) bool { return freqs[a].Count > freqs[b].Count })
	if len(freqs) > k {
		freqs = freqs[:k]
	}
	return freqs
}
