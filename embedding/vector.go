package embedding

import "math"

// Cosine returns the cosine similarity of a and b. Mismatched lengths or a
// zero vector yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Mean returns the element-wise mean of vecs. Vectors whose length differs
// from the first one are skipped. Returns nil for no input.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	n := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(n))
	}
	return out
}

// Blend returns keep*old + (1-keep)*v. A nil old returns a copy of v.
func Blend(old, v []float32, keep float64) []float32 {
	out := make([]float32, len(v))
	if len(old) != len(v) {
		copy(out, v)
		return out
	}
	for i := range v {
		out[i] = float32(keep*float64(old[i]) + (1-keep)*float64(v[i]))
	}
	return out
}

// RunningMean folds v into a mean of n samples and returns the new mean.
func RunningMean(mean, v []float32, n int) []float32 {
	if n <= 0 || len(mean) != len(v) {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32((float64(mean[i])*float64(n) + float64(v[i])) / float64(n+1))
	}
	return out
}
