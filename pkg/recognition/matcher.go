package recognition

import (
	"errors"
	"fmt"
	"math"
)

// Embedding is a face descriptor produced by the extractor. Its length is
// fixed by the model (128 for the dlib ResNet).
type Embedding []float32

// ErrDimensionMismatch is returned when two embeddings differ in length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrEmptyEmbedding is returned for zero-length embeddings.
var ErrEmptyEmbedding = errors.New("empty embedding")

// ErrNoSamples is returned when averaging an empty sample set.
var ErrNoSamples = errors.New("no samples to average")

// Clone returns a copy of the embedding.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Distance calculates the Euclidean distance between two embeddings.
func Distance(a, b Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyEmbedding
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// IsMatch reports whether two embeddings are closer than threshold.
// A distance equal to the threshold is a rejection.
func IsMatch(a, b Embedding, threshold float64) (bool, error) {
	d, err := Distance(a, b)
	if err != nil {
		return false, err
	}
	return d < threshold, nil
}

// FindBestMatch returns the index and distance of the closest gallery entry
// that matches probe within threshold. The first entry wins ties.
// ok is false when the gallery is empty or nothing is within threshold.
func FindBestMatch(probe Embedding, gallery []Embedding, threshold float64) (idx int, distance float64, ok bool, err error) {
	idx = -1
	distance = math.MaxFloat64

	for i, candidate := range gallery {
		d, err := Distance(probe, candidate)
		if err != nil {
			return -1, math.MaxFloat64, false, fmt.Errorf("gallery entry %d: %w", i, err)
		}
		if d < threshold && d < distance {
			idx = i
			distance = d
		}
	}

	return idx, distance, idx >= 0, nil
}

// Confidence maps a distance to a display percentage, max(0, 100*(1-d)).
// It never feeds the match decision. Distances above 1 clamp to 0.
func Confidence(distance float64) float64 {
	return math.Max(0, 100*(1-distance))
}

// Mean computes the element-wise mean of the samples.
func Mean(samples []Embedding) (Embedding, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	dim := len(samples[0])
	if dim == 0 {
		return nil, ErrEmptyEmbedding
	}

	sum := make([]float64, dim)
	for i, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("sample %d: %w: %d != %d", i, ErrDimensionMismatch, len(s), dim)
		}
		for j, v := range s {
			sum[j] += float64(v)
		}
	}

	mean := make(Embedding, dim)
	n := float64(len(samples))
	for j := range sum {
		mean[j] = float32(sum[j] / n)
	}
	return mean, nil
}
