// Package vector provides the distance metrics and score transforms shared by
// both neighbor search backends. Keeping the math in one place is what makes
// the accelerated and brute-force paths rank-equivalent.
package vector

import "math"

// L2Distance returns the Euclidean distance between a and b.
// Vectors of unequal length are compared over the shorter prefix;
// callers are expected to validate dimensions up front.
func L2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// InnerProductDistance returns the negative inner product of a and b.
// Lower is closer, matching pgvector's <#> operator.
func InnerProductDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return -sum
}

// CosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is empty or zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / math.Sqrt(normA*normB)
}

// L2Score maps a Euclidean distance to a higher-is-better score in (0, 1].
// A self-match (distance 0) scores exactly 1.
func L2Score(distance float64) float64 {
	return 1.0 / (1.0 + math.Max(distance, 0))
}

// InnerProductScore maps a negative-inner-product distance back to the raw
// inner product, so higher remains better.
func InnerProductScore(distance float64) float64 {
	return -distance
}
