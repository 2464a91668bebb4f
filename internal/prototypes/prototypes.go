// Package prototypes builds and memoises one average embedding per
// semantic category, used by the EmotionAnalyzer as a single-vector
// classifier via cosine comparison. Grounded directly on
// original_source/rhythmai/core/emotion_analyzer.py's _build_prototypes:
// same 15 keyword groups, same 10 prompt templates, same cache-key
// derivation (hash of model id + canonical keyword groups), same
// mean-pooling construction.
package prototypes

import (
	"context"
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rhythmai/internal/embedder"
)

// cacheFileVersion bumps whenever the on-disk encoding changes shape,
// forcing regeneration of old caches rather than risking a silent
// mis-decode.
const cacheFileVersion = 1

// templates are crossed with every keyword in every category to build the
// prompt strings that get encoded and averaged into a centroid.
var templates = []string{
	"%s",
	"música para %s",
	"quiero %s",
	"necesito %s",
	"momento de %s",
	"cuando estoy %s",
	"para %s",
	"mientras %s",
	"estado de %s",
	"sentirse %s",
}

// KeywordGroups is the default set of 15 semantic categories, ported
// verbatim (category names and keyword lists) from
// original_source/rhythmai/core/emotion_analyzer.py's
// EmotionAnalyzer.__init__ activity_prototypes literal — not
// re-translated or substituted, so the hashing-trick embedder's
// bag-of-tokens overlap with real user input matches the original
// exactly.
var KeywordGroups = map[string][]string{
	"high_energy": {
		"bailar", "fiesta", "celebrar", "entrenar", "gimnasio",
		"correr", "ejercicio intenso", "moverme", "activarme",
	},
	"low_energy": {
		"estudiar", "concentrarme", "leer", "trabajar",
		"relajarme", "descansar", "tranquilidad",
	},
	"happy": {
		"feliz", "alegre", "contento", "alegría", "felicidad",
		"animado", "bien", "genial", "fantástico", "dichoso",
	},
	"romantic": {
		"cita romántica", "pareja", "amor", "romántico",
		"momento íntimo", "aniversario",
	},
	"sad": {
		"triste", "llorar", "melancolía", "dolor",
		"tristeza", "pena", "soledad",
	},
	"angry": {
		"rabia", "enfado", "frustración", "ira",
		"molesto", "enojado", "irritado",
	},
	"sleep": {
		"dormir", "sueño", "descanso nocturno",
		"conciliar sueño", "noche",
	},
	"party": {
		"fiesta", "rumba", "discoteca", "salir de fiesta",
		"celebración", "pasarla bien",
	},
	"workout": {
		"gimnasio", "gym", "pesas", "entrenar duro",
		"rutina ejercicio", "fitness",
	},
	"nostalgic": {
		"nostalgia", "recuerdos", "pasado", "extrañar",
		"tiempos antiguos", "memorias", "recordar",
	},
	"motivated": {
		"motivación", "motivado", "inspiración", "inspirado",
		"empujón", "ánimo", "impulso",
	},
	"stressed": {
		"estrés", "estresado", "agobio", "presión",
		"ansiedad", "nervios", "tensión",
	},
	"confident": {
		"confianza", "seguro", "empoderado", "fuerte",
		"capaz", "poder", "autoestima",
	},
	"relaxed": {
		"relajado", "tranquilo", "paz", "calma",
		"sereno", "descanso", "sosiego",
	},
	"bored": {
		"aburrido", "aburrimiento", "tedio", "monotonía",
		"sin hacer nada", "rutina pesada",
	},
}

// Set is a mapping category -> centroid, one mean embedding per category.
type Set map[string][]float32

// onDisk is the versioned file format.
type onDisk struct {
	Version    int
	Dimension  int
	Centroids  map[string][]float32
}

// Cache builds Set instances and memoises them to disk, keyed by a hash
// of the embedding model identifier and the keyword groups content.
type Cache struct {
	dir      string
	embedder embedder.Embedder
	groups   map[string][]string
}

// New constructs a Cache rooted at cacheDir using the given embedder and
// keyword groups (KeywordGroups unless the caller has a reason to
// override it, e.g. in tests).
func New(cacheDir string, emb embedder.Embedder, groups map[string][]string) *Cache {
	return &Cache{dir: cacheDir, embedder: emb, groups: groups}
}

// Key returns the stable cache key for this Cache's (model id, groups)
// pair: an 8 hex-character MD5 prefix of the model id concatenated with
// the canonically sorted keyword groups, matching
// emotion_analyzer.py's _generate_cache_key.
func (c *Cache) Key() string {
	h := md5.New()
	fmt.Fprintf(h, "%s_", c.embedder.ModelID())
	categories := make([]string, 0, len(c.groups))
	for cat := range c.groups {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		kws := append([]string(nil), c.groups[cat]...)
		sort.Strings(kws)
		fmt.Fprintf(h, "%s:%v;", cat, kws)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8]
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, fmt.Sprintf("prototypes_%s.bin", c.Key()))
}

// Load returns the cached Set if present and valid, building and
// persisting it otherwise. A malformed cache file is logged and
// regenerated rather than treated as fatal (spec.md §4.D).
func (c *Cache) Load(ctx context.Context) (Set, error) {
	if set, err := c.loadFromDisk(); err == nil {
		return set, nil
	} else if !os.IsNotExist(err) {
		fmt.Printf("prototypes: malformed cache at %s, regenerating: %v\n", c.path(), err)
	}

	set, err := c.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("prototypes: building: %w", err)
	}
	if err := c.save(set); err != nil {
		return nil, fmt.Errorf("prototypes: saving: %w", err)
	}
	return set, nil
}

func (c *Cache) loadFromDisk() (Set, error) {
	f, err := os.Open(c.path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var d onDisk
	if err := gob.NewDecoder(f).Decode(&d); err != nil {
		return nil, err
	}
	if d.Version != cacheFileVersion {
		return nil, fmt.Errorf("cache version %d != expected %d", d.Version, cacheFileVersion)
	}
	return Set(d.Centroids), nil
}

func (c *Cache) save(set Set) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	d := onDisk{Version: cacheFileVersion, Dimension: c.embedder.Dimension(), Centroids: set}

	tmp := c.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(d); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, c.path())
}

// build enumerates template x keyword for every category, encodes the
// batch, and averages into one centroid per category. Categories are
// processed in sorted order and keywords within a category are processed
// in slice order (never map iteration) so two runs with the same inputs
// produce bit-identical centroids.
func (c *Cache) build(ctx context.Context) (Set, error) {
	categories := make([]string, 0, len(c.groups))
	for cat := range c.groups {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	set := make(Set, len(categories))
	for _, cat := range categories {
		var phrases []string
		for _, kw := range c.groups[cat] {
			for _, tmpl := range templates {
				phrases = append(phrases, fmt.Sprintf(tmpl, kw))
			}
		}
		vectors, err := c.embedder.EncodeBatch(ctx, phrases)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", cat, err)
		}
		set[cat] = mean(vectors, c.embedder.Dimension())
	}
	return set, nil
}

func mean(vectors [][]float32, dim int) []float32 {
	out := make([]float64, dim)
	for _, v := range vectors {
		for i, x := range v {
			out[i] += float64(x)
		}
	}
	n := float64(len(vectors))
	result := make([]float32, dim)
	if n == 0 {
		return result
	}
	for i, x := range out {
		result[i] = float32(x / n)
	}
	return result
}
