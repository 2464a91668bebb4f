package open_test

import (
	"testing"

	"rhythmai/internal/vectorstore"
	"rhythmai/internal/vectorstore/open"
)

func TestOpen_UnknownKindRejected(t *testing.T) {
	_, err := open.Open("chroma", t.TempDir(), 4)
	if err == nil {
		t.Fatal("expected error for unknown store kind, got nil")
	}
}

func TestOpen_HNSWAndFlat(t *testing.T) {
	for _, kind := range []vectorstore.Kind{vectorstore.KindHNSW, vectorstore.KindFlat} {
		store, err := open.Open(kind, t.TempDir(), 4)
		if err != nil {
			t.Fatalf("Open(%s) returned error: %v", kind, err)
		}
		defer store.Close()
		if store.Count() != 0 {
			t.Errorf("expected empty store for kind %s, got count %d", kind, store.Count())
		}
	}
}
