package embedding

import (
	"math"
	"testing"
)

func TestEmbed_Deterministic(t *testing.T) {
	e := New(384)

	a := e.Embed("the quarterly budget review")
	b := e.Embed("the quarterly budget review")

	if len(a) != 384 || len(b) != 384 {
		t.Fatalf("expected dimension 384, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestEmbed_DifferentTextsDiffer(t *testing.T) {
	e := New(64)

	a := e.Embed("machine learning")
	b := e.Embed("cooking pasta")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different texts produced identical vectors")
	}
}

func TestEmbed_UnitNorm(t *testing.T) {
	e := New(384)

	for _, text := range []string{"a", "hello world", "Q4 planning with the Acme team"} {
		vec := e.Embed(text)
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		norm := math.Sqrt(sum)
		if math.Abs(norm-1.0) > 1e-5 {
			t.Errorf("Embed(%q) norm = %f, want 1.0", text, norm)
		}
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	e := New(16)

	vec := e.Embed("")
	if len(vec) != 16 {
		t.Fatalf("expected dimension 16, got %d", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, got %f at %d", v, i)
		}
	}
}

func TestEmbed_OddDimension(t *testing.T) {
	// 20 is not a multiple of valuesPerBlock, so the last hash block is
	// partially consumed.
	e := New(20)

	vec := e.Embed("remainder block")
	if len(vec) != 20 {
		t.Fatalf("expected dimension 20, got %d", len(vec))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_Bounds(t *testing.T) {
	e := New(64)
	texts := []string{"alpha", "beta", "gamma", "delta"}
	for _, s := range texts {
		for _, u := range texts {
			sim := CosineSimilarity(e.Embed(s), e.Embed(u))
			if sim < -1.0-1e-9 || sim > 1.0+1e-9 {
				t.Errorf("similarity(%q,%q) = %f out of [-1,1]", s, u, sim)
			}
		}
		self := CosineSimilarity(e.Embed(s), e.Embed(s))
		if math.Abs(self-1.0) > 1e-6 {
			t.Errorf("self similarity of %q = %f, want 1", s, self)
		}
	}
}

func TestEuclideanDistance(t *testing.T) {
	if d := EuclideanDistance([]float32{0, 0}, []float32{3, 4}); math.Abs(d-5) > 1e-9 {
		t.Errorf("expected 5, got %f", d)
	}
	if d := EuclideanDistance([]float32{1}, []float32{1, 2}); !math.IsInf(d, 1) {
		t.Errorf("expected +Inf for mismatched lengths, got %f", d)
	}
}

func TestTopKSimilar(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},  // orthogonal
		{1, 0},  // exact
		{1, 1},  // diagonal
		{-1, 0}, // opposite
	}

	matches := TopKSimilar(query, candidates, 2)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Index != 1 {
		t.Errorf("expected candidate 1 first, got %d", matches[0].Index)
	}
	if matches[1].Index != 2 {
		t.Errorf("expected candidate 2 second, got %d", matches[1].Index)
	}
}

func TestTopKSimilar_StableTies(t *testing.T) {
	query := []float32{1, 0}
	// Two identical candidates tie exactly; input order must be preserved.
	candidates := [][]float32{
		{0, 1},
		{1, 1},
		{1, 1},
	}

	matches := TopKSimilar(query, candidates, 3)
	if matches[0].Index != 1 || matches[1].Index != 2 {
		t.Errorf("tie not broken by input order: %+v", matches)
	}
}

func TestTopKSimilar_KLargerThanCandidates(t *testing.T) {
	matches := TopKSimilar([]float32{1}, [][]float32{{1}}, 10)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}
