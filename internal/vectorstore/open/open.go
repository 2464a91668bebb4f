// Package open provides the vectorstore.Store factory, keyed on a
// configuration tag, mirroring rhythmai's stores/factory.py
// get_vector_store() (chroma/faiss branching on Config.VECTOR_STORE).
package open

import (
	"fmt"

	"rhythmai/internal/vectorstore"
	"rhythmai/internal/vectorstore/flat"
	"rhythmai/internal/vectorstore/hnsw"
)

// Open constructs a Store for the given kind rooted at dir. Any kind other
// than "hnsw" or "flat" is rejected with vectorstore.ErrUnknownKind.
func Open(kind vectorstore.Kind, dir string, dim int) (vectorstore.Store, error) {
	switch kind {
	case vectorstore.KindHNSW:
		return hnsw.Open(dir, dim)
	case vectorstore.KindFlat:
		return flat.Open(dir, dim)
	default:
		return nil, fmt.Errorf("%w: %q", vectorstore.ErrUnknownKind, kind)
	}
}
