// Package vector provides the vector math shared by tierdb's vector indexes.
//
// Main Functions:
//   - CosineSimilarity: Standard similarity for float32 vectors
//   - DotProduct: Dot product for float32 vectors
//   - EuclideanSimilarity: Distance-based similarity
//   - Normalize / NormalizeInPlace: Unit-length scaling
//   - Quantize: 8-bit scalar quantization for hot-tier storage
//   - TopK: Bounded best-k collection of scored IDs
package vector

import (
	"math"
)

// CosineSimilarity calculates cosine similarity between two float32 vectors.
// Returns value in range [-1, 1] where 1 = identical, 0 = orthogonal, -1 = opposite.
// Mismatched lengths, empty vectors and zero vectors give 0.
//
// Uses float64 accumulation for precision.
//
// Example:
//
//	a := []float32{1.0, 2.0, 3.0}
//	b := []float32{4.0, 5.0, 6.0}
//	sim := CosineSimilarity(a, b)  // Returns 0.9746318461970762
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct calculates the dot product of two float32 vectors.
// For normalized vectors, dot product equals cosine similarity.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// EuclideanSimilarity maps Euclidean distance into (0, 1] as
// 1 / (1 + distance).
func EuclideanSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}

// Normalize returns a unit-length copy of vec. A zero vector yields a zero
// vector of the same length.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	NormalizeInPlace(out)
	return out
}

// NormalizeInPlace scales v to unit length. Zero vectors are left unchanged.
func NormalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
