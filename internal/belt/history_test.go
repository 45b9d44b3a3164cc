package belt

import (
	"reflect"
	"testing"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		h.Push(v)
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}
	if got := h.Values(); !reflect.DeepEqual(got, []float64{3, 4, 5}) {
		t.Errorf("values = %v", got)
	}
	approx(t, "mean", h.Mean(), 4, 1e-12)
	approx(t, "stddev", h.StdDev(), 0.816496580927726, 1e-12)
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(2)
	h.Push(7)
	h.Clear()
	if h.Len() != 0 || h.Mean() != 0 || h.StdDev() != 0 {
		t.Errorf("history not empty after Clear: %v", h.Values())
	}
	h.Push(1)
	if got := h.Values(); !reflect.DeepEqual(got, []float64{1}) {
		t.Errorf("values = %v", got)
	}
}

func TestHistoryMinimumCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Push(1)
	h.Push(2)
	if h.Cap() != 1 || h.Values()[0] != 2 {
		t.Errorf("cap=%d values=%v", h.Cap(), h.Values())
	}
}
