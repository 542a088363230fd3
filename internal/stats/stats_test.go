package stats

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	xs := Sorted([]float64{10, 12, 11, 13, 1000, 9})

	tests := []struct {
		q    float64
		want float64
	}{
		{0, 9},
		{0.25, 10.25},
		{0.5, 11.5},
		{0.75, 12.75},
		{1, 1000},
	}

	for _, tt := range tests {
		if got := Quantile(xs, tt.q); !approx(got, tt.want) {
			t.Errorf("Quantile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestQuantile_Empty(t *testing.T) {
	if got := Quantile(nil, 0.5); !math.IsNaN(got) {
		t.Errorf("Quantile(nil) = %v, want NaN", got)
	}
}

func TestStd(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := PopulationStd(xs); !approx(got, 2) {
		t.Errorf("PopulationStd() = %v, want 2", got)
	}
	if got := SampleStd(xs); !approx(got, math.Sqrt(32.0/7.0)) {
		t.Errorf("SampleStd() = %v, want %v", got, math.Sqrt(32.0/7.0))
	}
	if got := SampleStd([]float64{1}); !math.IsNaN(got) {
		t.Errorf("SampleStd(single) = %v, want NaN", got)
	}
}

func TestPearsonAndSpearman(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	if got := Pearson(x, y); !approx(got, 1) {
		t.Errorf("Pearson() = %v, want 1", got)
	}

	// Monotonic but not linear: Spearman is exactly 1.
	z := []float64{1, 8, 27, 64, 125}
	if got := Spearman(x, z); !approx(got, 1) {
		t.Errorf("Spearman() = %v, want 1", got)
	}

	if got := Pearson(x, []float64{3, 3, 3, 3, 3}); !math.IsNaN(got) {
		t.Errorf("Pearson(constant) = %v, want NaN", got)
	}
}

func TestRanks_Ties(t *testing.T) {
	got := Ranks([]float64{10, 20, 10, 30})
	want := []float64{1.5, 3, 1.5, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Ranks()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 1, 2, 3, 4, 10}, 5)
	if len(bins) != 5 {
		t.Fatalf("len(bins) = %d, want 5", len(bins))
	}
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total != 6 {
		t.Errorf("total count = %d, want 6", total)
	}
	if bins[4].Count != 1 || bins[4].Hi != 10 {
		t.Errorf("last bin = %+v, want max value counted in closed last bin", bins[4])
	}

	constant := Histogram([]float64{3, 3}, 4)
	if constant[0].Lo != 2.5 || constant[3].Hi != 3.5 {
		t.Errorf("constant histogram range = [%v, %v], want [2.5, 3.5]", constant[0].Lo, constant[3].Hi)
	}
}

func TestRound(t *testing.T) {
	if got := Round(0.1234567, 6); got != 0.123457 {
		t.Errorf("Round() = %v, want 0.123457", got)
	}
}
