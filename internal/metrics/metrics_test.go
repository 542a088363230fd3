package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGet_ReturnsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Error("Get() should return the same collectors")
	}
}

func TestObserve(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("test_op", "error"))

	m.Observe("test_op", time.Now(), errors.New("boom"))
	m.Observe("test_op", time.Now(), nil)

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("test_op", "error")); got != before+1 {
		t.Errorf("error count = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("test_op", "ok")); got < 1 {
		t.Errorf("ok count = %v, want at least 1", got)
	}
}
