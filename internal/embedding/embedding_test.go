package embedding

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Read https://example.com/a?b=1 NOW: Go-lang, v1.24!")
	want := []string{"read", "now", "go", "lang", "v1", "24"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute("Reinforcement Learning basics")
	b := Compute("Reinforcement Learning basics")
	if len(a) != Dim {
		t.Fatalf("expected %d dims, got %d", Dim, len(a))
	}
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			t.Fatalf("dimension %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestCompute_UnitNorm(t *testing.T) {
	inputs := []string{
		"hello",
		"The quick brown fox jumps over the lazy dog",
		"repeat repeat repeat repeat",
		"Mixed CASE text with numbers 42 and 1337",
	}
	for _, in := range inputs {
		n := Norm(Compute(in))
		if math.Abs(n-1.0) > 1e-5 {
			t.Errorf("norm(%q) = %f, want 1", in, n)
		}
	}
}

func TestCompute_EmptyIsZero(t *testing.T) {
	for _, in := range []string{"", "   ", "!!! ??? ...", "https://only.a/url"} {
		v := Compute(in)
		if len(v) != Dim {
			t.Fatalf("expected %d dims, got %d", Dim, len(v))
		}
		if Norm(v) != 0 {
			t.Errorf("Compute(%q) should be the zero vector", in)
		}
	}
}

func TestCosineSimilarity_Self(t *testing.T) {
	v := Compute("graph databases store nodes and edges")
	if sim := CosineSimilarity(v, v); math.Abs(sim-1.0) > 1e-6 {
		t.Errorf("expected ~1.0, got %f", sim)
	}
}

func TestCosineSimilarity_Bounds(t *testing.T) {
	texts := []string{
		"alpha beta gamma",
		"delta epsilon",
		"alpha alpha alpha",
		"completely different words here",
		"",
	}
	for _, x := range texts {
		for _, y := range texts {
			sim := CosineSimilarity(Compute(x), Compute(y))
			if sim < -1 || sim > 1 {
				t.Errorf("cos(%q, %q) = %f out of range", x, y, sim)
			}
		}
	}
}

func TestCosineSimilarity_Truncates(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0}
	if sim := CosineSimilarity(a, b); sim != 1 {
		t.Errorf("expected 1 over shared prefix, got %f", sim)
	}
}

func TestCosineSimilarity_Empty(t *testing.T) {
	if sim := CosineSimilarity(nil, []float32{1}); sim != 0 {
		t.Errorf("expected 0, got %f", sim)
	}
	if sim := CosineSimilarity(nil, nil); sim != 0 {
		t.Errorf("expected 0, got %f", sim)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	if sim := CosineSimilarity(a, b); math.Abs(sim+1) > 1e-9 {
		t.Errorf("expected -1, got %f", sim)
	}
}
