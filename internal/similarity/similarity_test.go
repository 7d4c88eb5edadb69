package similarity

import (
	"math"
	"testing"
)

func TestCosineSymmetry(t *testing.T) {
	a := []float32{0.3, -0.5, 0.8, 0.1}
	b := []float32{0.9, 0.2, -0.4, 0.7}

	if got, want := Cosine(a, b), Cosine(b, a); got != want {
		t.Errorf("Cosine not symmetric: %v vs %v", got, want)
	}
}

func TestCosineSelfSimilarity(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.5, 0.5, 0.5},
		{-0.3, 0.7, 0.2, -0.9},
	}

	for _, v := range vectors {
		if got := Cosine(v, v); math.Abs(got-1) > 1e-9 {
			t.Errorf("Cosine(v,v) = %v, want ~1", got)
		}
	}
}

func TestCosineZeroSafety(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{name: "both empty", a: nil, b: nil},
		{name: "one empty", a: []float32{1, 2}, b: nil},
		{name: "mismatched lengths", a: []float32{1, 2}, b: []float32{1, 2, 3}},
		{name: "zero vector", a: []float32{0, 0, 0}, b: []float32{1, 2, 3}},
		{name: "both zero", a: []float32{0, 0}, b: []float32{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); got != 0 {
				t.Errorf("Cosine() = %v, want exactly 0", got)
			}
		})
	}
}

func TestCosineOrthogonalAndOpposite(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Errorf("opposite vectors: got %v, want -1", got)
	}
}

func TestTextScoring(t *testing.T) {
	tests := []struct {
		name  string
		query string
		text  string
		zero  bool
	}{
		{name: "empty query", query: "", text: "anything", zero: true},
		{name: "empty text", query: "batch", text: "", zero: true},
		{name: "no match", query: "sterility", text: "unrelated content here", zero: true},
		{name: "term match", query: "validate batch", text: "Validate every batch.", zero: false},
		{name: "short terms filtered", query: "a of to", text: "a of to a of to", zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Text(tt.query, tt.text)
			if tt.zero && got != 0 {
				t.Errorf("Text() = %v, want 0", got)
			}
			if !tt.zero && got <= 0 {
				t.Errorf("Text() = %v, want > 0", got)
			}
			if got < 0 || got > 1 {
				t.Errorf("Text() = %v, out of [0,1]", got)
			}
		})
	}
}

func TestTextPhraseBonus(t *testing.T) {
	query := "validate batch"
	phrase := Text(query, "you must validate batch records")
	scattered := Text(query, "validate the records for each batch")

	if phrase <= scattered {
		t.Errorf("phrase containment should score higher: phrase=%v scattered=%v", phrase, scattered)
	}
}

func TestTextRanking(t *testing.T) {
	// The chunk containing the query terms must outrank unrelated chunks.
	query := "validate batch"
	relevant := Text(query, "Validate every batch.")
	unrelated := Text(query, "Document each deviation.")

	if relevant <= unrelated {
		t.Errorf("relevant=%v should exceed unrelated=%v", relevant, unrelated)
	}
}

func TestTextDeterministic(t *testing.T) {
	query := "deviation report"
	text := "Every deviation requires a report. The report references the deviation."

	first := Text(query, text)
	for i := 0; i < 5; i++ {
		if got := Text(query, text); got != first {
			t.Fatalf("Text not deterministic: %v vs %v", got, first)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}

	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
