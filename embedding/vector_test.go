package embedding

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float32{{1, 2}, {3, 4}, {9}})
	if got[0] != 2 || got[1] != 3 {
		t.Errorf("expected [2 3], got %v", got)
	}
	if Mean(nil) != nil {
		t.Error("expected nil for no vectors")
	}
}

func TestBlend(t *testing.T) {
	got := Blend([]float32{1, 0}, []float32{0, 1}, 0.7)
	if math.Abs(float64(got[0])-0.7) > 1e-6 || math.Abs(float64(got[1])-0.3) > 1e-6 {
		t.Errorf("expected [0.7 0.3], got %v", got)
	}
	fresh := Blend(nil, []float32{5}, 0.7)
	if fresh[0] != 5 {
		t.Errorf("expected copy of v, got %v", fresh)
	}
}

func TestRunningMean(t *testing.T) {
	got := RunningMean([]float32{2, 2}, []float32{5, 8}, 2)
	if got[0] != 3 || got[1] != 4 {
		t.Errorf("expected [3 4], got %v", got)
	}
}
