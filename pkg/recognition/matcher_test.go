package recognition

import (
	"errors"
	"math"
	"testing"
)

func vec(vals ...float32) Embedding {
	return Embedding(vals)
}

// along returns a 128-d embedding with a single non-zero component, so its
// distance to the zero vector is exactly d.
func along(d float32) Embedding {
	e := make(Embedding, 128)
	e[0] = d
	return e
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Embedding
		expected float64
	}{
		{"identical", vec(1, 2, 3), vec(1, 2, 3), 0},
		{"three-four-five", vec(1, 2, 3), vec(4, 6, 8), math.Sqrt(50)},
		{"unit", vec(0, 0), vec(0, 1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Distance failed: %v", err)
			}
			if math.Abs(d-tt.expected) > 1e-6 {
				t.Errorf("expected %f, got %f", tt.expected, d)
			}
		})
	}
}

func TestDistance_DimensionMismatch(t *testing.T) {
	_, err := Distance(vec(1, 2, 3), vec(1, 2))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	_, err = Distance(vec(), vec(1))
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("expected ErrEmptyEmbedding, got %v", err)
	}
}

func TestIsMatch_SelfAlwaysMatches(t *testing.T) {
	a := vec(0.12, -0.4, 0.33, 0.9)
	for _, threshold := range []float64{1e-9, 0.2, 0.6, 10} {
		ok, err := IsMatch(a, a, threshold)
		if err != nil {
			t.Fatalf("IsMatch failed: %v", err)
		}
		if !ok {
			t.Errorf("embedding should match itself at threshold %g", threshold)
		}
	}
}

func TestIsMatch_StrictThreshold(t *testing.T) {
	a, b := vec(0, 0), vec(0, 0.5)

	ok, _ := IsMatch(a, b, 0.5)
	if ok {
		t.Error("distance equal to threshold must be rejected")
	}
	ok, _ = IsMatch(a, b, 0.50001)
	if !ok {
		t.Error("distance below threshold must be accepted")
	}
}

func TestIsMatch_Monotonic(t *testing.T) {
	a := vec(0.1, 0.2, 0.3)
	b := vec(0.4, 0.1, 0.0)
	thresholds := []float64{0.1, 0.3, 0.42, 0.45, 0.6, 1.0}

	for i := 0; i < len(thresholds); i++ {
		for j := i + 1; j < len(thresholds); j++ {
			lo, _ := IsMatch(a, b, thresholds[i])
			hi, _ := IsMatch(a, b, thresholds[j])
			if lo && !hi {
				t.Errorf("match at %g but not at %g", thresholds[i], thresholds[j])
			}
		}
	}
}

func TestFindBestMatch(t *testing.T) {
	probe := along(0)
	gallery := []Embedding{along(0.5), along(0.3)}

	idx, dist, ok, err := FindBestMatch(probe, gallery, 0.6)
	if err != nil {
		t.Fatalf("FindBestMatch failed: %v", err)
	}
	if !ok || idx != 1 {
		t.Fatalf("expected the 0.3 candidate (index 1), got idx=%d ok=%v", idx, ok)
	}
	if math.Abs(dist-0.3) > 1e-6 {
		t.Errorf("expected distance 0.3, got %f", dist)
	}

	_, _, ok, err = FindBestMatch(probe, gallery, 0.2)
	if err != nil {
		t.Fatalf("FindBestMatch failed: %v", err)
	}
	if ok {
		t.Error("expected no match at threshold 0.2")
	}
}

func TestFindBestMatch_EmptyGallery(t *testing.T) {
	for _, threshold := range []float64{0.01, 0.6, 1e9} {
		idx, _, ok, err := FindBestMatch(along(0), nil, threshold)
		if err != nil || ok || idx != -1 {
			t.Errorf("empty gallery at %g: idx=%d ok=%v err=%v", threshold, idx, ok, err)
		}
	}
}

func TestFindBestMatch_FirstWinsTies(t *testing.T) {
	gallery := []Embedding{along(0.4), along(-0.4), along(0.4)}

	idx, _, ok, _ := FindBestMatch(along(0), gallery, 0.6)
	if !ok || idx != 0 {
		t.Errorf("expected first tied entry, got idx=%d ok=%v", idx, ok)
	}
}

func TestFindBestMatch_MismatchedGallery(t *testing.T) {
	_, _, ok, err := FindBestMatch(vec(1, 2), []Embedding{vec(1, 2, 3)}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if ok {
		t.Error("mismatch must not report a match")
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 100},
		{0.25, 75},
		{1, 0},
		{1.7, 0},
	}
	for _, tt := range tests {
		if got := Confidence(tt.distance); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Confidence(%g) = %g, want %g", tt.distance, got, tt.want)
		}
	}
}

func TestMean(t *testing.T) {
	samples := []Embedding{vec(1, 2, 3), vec(3, 4, 5), vec(2, 0, 1)}

	mean, err := Mean(samples)
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}
	want := vec(2, 2, 3)
	for i := range want {
		if math.Abs(float64(mean[i]-want[i])) > 1e-6 {
			t.Errorf("component %d = %f, want %f", i, mean[i], want[i])
		}
	}
}

func TestMean_Errors(t *testing.T) {
	if _, err := Mean(nil); !errors.Is(err, ErrNoSamples) {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
	if _, err := Mean([]Embedding{vec(1, 2), vec(1)}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestClone(t *testing.T) {
	a := vec(1, 2)
	b := a.Clone()
	b[0] = 9
	if a[0] != 1 {
		t.Error("Clone must not share backing storage")
	}
	if Embedding(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func BenchmarkFindBestMatch(b *testing.B) {
	gallery := make([]Embedding, 50)
	for i := range gallery {
		gallery[i] = along(float32(i) / 100)
	}
	probe := along(0.255)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _, _ = FindBestMatch(probe, gallery, 0.6)
	}
}
