package vector

import (
	"math"
)

// Quantized is a vector stored as one byte per dimension, scaled linearly
// between the source vector's minimum and maximum.
type Quantized struct {
	Values []uint8
	Min    float32
	Max    float32
}

// quantizeEpsilon is the spread below which a vector counts as constant.
const quantizeEpsilon = 1.1920929e-07

// Quantize maps each component v to round((v-min)/range*255). A constant
// vector uses a range of 1 so every component quantizes to 0.
func Quantize(vec []float32) Quantized {
	if len(vec) == 0 {
		return Quantized{}
	}
	lo, hi := vec[0], vec[0]
	for _, v := range vec[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	spread := hi - lo
	if float32(math.Abs(float64(spread))) < quantizeEpsilon {
		spread = 1
	}

	out := make([]uint8, len(vec))
	for i, v := range vec {
		n := (v - lo) / spread
		out[i] = uint8(math.Round(float64(n * 255)))
	}
	return Quantized{Values: out, Min: lo, Max: hi}
}

// Dim returns the number of dimensions.
func (q Quantized) Dim() int {
	return len(q.Values)
}

func (q Quantized) at(i int) float64 {
	return float64(q.Min) + float64(q.Values[i])/255*float64(q.Max-q.Min)
}

// Dequantize reconstructs an approximation of the source vector.
func (q Quantized) Dequantize() []float32 {
	out := make([]float32, len(q.Values))
	for i := range out {
		out[i] = float32(q.at(i))
	}
	return out
}

// Cosine is the cosine similarity of the reconstructed vectors. Mismatched
// dimensions or a zero-norm side give 0.
func (q Quantized) Cosine(other Quantized) float64 {
	if q.Dim() != other.Dim() || q.Dim() == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range q.Values {
		a, b := q.at(i), other.at(i)
		dot += a * b
		na += a * a
		nb += b * b
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
