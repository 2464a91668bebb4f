package embedder_test

import (
	"context"
	"math"
	"testing"

	"rhythmai/internal/embedder"
)

func TestEncode_UnitNorm(t *testing.T) {
	emb := embedder.New("test-model", 384)
	vec, err := emb.Encode(context.Background(), "quiero música para entrenar en el gimnasio")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("expected unit norm, got %f", norm)
	}
	if len(vec) != 384 {
		t.Errorf("expected dimension 384, got %d", len(vec))
	}
}

func TestEncode_EmptyTextRejected(t *testing.T) {
	emb := embedder.New("test-model", 384)
	if _, err := emb.Encode(context.Background(), "   "); err == nil {
		t.Error("expected error for empty text, got nil")
	}
}

func TestEncode_Deterministic(t *testing.T) {
	emb := embedder.New("test-model", 384)
	a, err := emb.Encode(context.Background(), "estoy muy feliz")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	b, err := emb.Encode(context.Background(), "estoy muy feliz")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical vectors at index %d: %f != %f", i, a[i], b[i])
		}
	}
}

func TestEncodeBatch_DropsEmptyEntries(t *testing.T) {
	emb := embedder.New("test-model", 384)
	vecs, err := emb.EncodeBatch(context.Background(), []string{"música alegre", "", "   ", "música triste"})
	if err != nil {
		t.Fatalf("EncodeBatch returned error: %v", err)
	}
	if len(vecs) != 2 {
		t.Errorf("expected 2 vectors after dropping empties, got %d", len(vecs))
	}
}

func TestEncodeBatch_AllEmptyFails(t *testing.T) {
	emb := embedder.New("test-model", 384)
	if _, err := emb.EncodeBatch(context.Background(), []string{"", "  "}); err == nil {
		t.Error("expected error when every entry is empty, got nil")
	}
}
