// Package recommender implements the orchestrator (component J): it runs
// the EmotionAnalyzer on the input, enriches the query for the Embedder,
// queries the VectorStore with a genre filter, applies fallback and
// optional randomisation, records the interaction via the ContextManager,
// and returns the result bundle. Grounded step-for-step on
// original_source/rhythmai/core/music_recommender.py's recommend().
package recommender

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"rhythmai/internal/embedder"
	"rhythmai/internal/emotion"
	"rhythmai/internal/memory"
	"rhythmai/internal/models"
	"rhythmai/internal/vectorstore"
)

// descriptors is the fixed emotion -> mood-descriptor table used to
// enrich the query text (spec.md Glossary "Descriptor table").
var descriptors = map[string]string{
	"sadness":    "música triste melancólica emotiva",
	"joy":        "música alegre feliz positiva",
	"excitement": "música emocionante energética",
	"anger":      "música intensa agresiva",
	"love":       "música romántica amorosa",
	"fear":       "música tranquila calmante",
	"chill":      "música relajante tranquila",
	"neutral":    "música",
}

func descriptorFor(emotionLabel string) string {
	if d, ok := descriptors[emotionLabel]; ok {
		return d
	}
	return "música " + emotionLabel
}

// Bundle is the result of a Recommend call (spec.md §4.J step 11).
// MusicRecommendations and ContextPlaylists are reserved shape-slots for
// a presentation layer and are always empty from the core.
type Bundle struct {
	EmotionAnalysis       models.EmotionState    `json:"emotion_analysis"`
	VectorResults         []vectorstore.Result   `json:"vector_results"`
	Explanation           string                 `json:"explanation"`
	EnrichedContext       memory.EnrichedContext `json:"enriched_context"`
	MusicRecommendations  []string               `json:"music_recommendations"`
	ContextPlaylists      []string               `json:"context_playlists"`
}

// Options configures optional Recommender behaviour.
type Options struct {
	// UseHistory, when true, boosts a user's favourite genre to the
	// front of suggested_genres when the emotion-derived list doesn't
	// already start with it. Additive personalisation; does not change
	// any spec.md invariant. See SPEC_FULL.md §4 supplemented features.
	UseHistory bool
}

// DefaultOptions enables history-based genre boosting. New uses the
// Options it is given as-is; a zero Options value disables the boost.
var DefaultOptions = Options{UseHistory: true}

// Recommender is the single entry point for turning free text into a
// ranked, explained set of tracks.
type Recommender struct {
	analyzer *emotion.Analyzer
	embedder embedder.Embedder
	store    vectorstore.Store
	contexts func(userID string) *memory.ContextManager
	opts     Options
	rng      *rand.Rand
}

// New constructs a Recommender. contextFor must return a ContextManager
// scoped to the given user id; the caller typically closes over a shared
// memory directory and encryptor.
func New(analyzer *emotion.Analyzer, emb embedder.Embedder, store vectorstore.Store, contextFor func(userID string) *memory.ContextManager, opts Options) *Recommender {
	return &Recommender{
		analyzer: analyzer,
		embedder: emb,
		store:    store,
		contexts: contextFor,
		opts:     opts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Recommend runs the full pipeline for one user request. It never returns
// an error: per spec.md's never-fatal contract, every internal failure
// degrades the result rather than propagating (context fetch failure ->
// empty context; persistence failure -> logged and dropped).
func (r *Recommender) Recommend(ctx context.Context, userID, userText string, k int, randomize bool) Bundle {
	if k <= 0 {
		k = 10
	}

	cm := r.contexts(userID)
	enrichedCtx := cm.EnrichedContext() // step 1: best-effort, never fatal

	state := r.analyzer.Analyze(ctx, userText) // step 2
	if len(state.SuggestedGenres) == 0 {
		state = models.NeutralDefault()
	}

	if r.opts.UseHistory {
		state = boostFavoriteGenre(state, cm)
	}

	enrichedQuery := buildEnrichedQuery(userText, state) // step 3

	queryVec, err := r.embedder.Encode(ctx, enrichedQuery) // step 4
	if err != nil {
		// Can't embed an effectively-empty query; return an explained,
		// empty-result bundle rather than propagating.
		return Bundle{
			EmotionAnalysis:      state,
			VectorResults:        []vectorstore.Result{},
			Explanation:          explanation(state),
			EnrichedContext:      enrichedCtx,
			MusicRecommendations: []string{},
			ContextPlaylists:     []string{},
		}
	}

	searchN := k
	if randomize {
		searchN = k * 2
	}

	results := r.search(ctx, queryVec, state.SuggestedGenres, searchN, k) // steps 5-7

	if randomize && len(results) > k {
		results = r.randomizeResults(results, k) // step 8
	} else if len(results) > k {
		results = results[:k]
	}

	exp := explanation(state) // step 9

	// Step 10: record the interaction; errors are logged, never
	// propagated (one of the three explicit swallow points, alongside
	// emotion.Analyzer.Analyze and memory.ContextManager.EnrichedContext).
	recIDs := make([]string, 0, len(results))
	for _, res := range results {
		recIDs = append(recIDs, res.ID)
	}
	if err := cm.AddInteraction(models.Interaction{
		Timestamp:       time.Now().UTC(),
		UserText:        userText,
		EmotionData:     state,
		Recommendations: recIDs,
	}); err != nil {
		fmt.Printf("recommender: failed to record interaction for user %s: %v\n", userID, err)
	}

	return Bundle{ // step 11
		EmotionAnalysis:      state,
		VectorResults:        results,
		Explanation:          exp,
		EnrichedContext:      enrichedCtx,
		MusicRecommendations: []string{},
		ContextPlaylists:     []string{},
	}
}

// search implements steps 5-7: primary genre query, secondary-genre
// fallback if fewer than k/2 results came back, and an unfiltered query
// if no genre signal exists at all.
func (r *Recommender) search(ctx context.Context, queryVec []float32, genres []string, searchN, k int) []vectorstore.Result {
	if len(genres) == 0 {
		results, err := r.store.Search(ctx, queryVec, searchN, nil)
		if err != nil {
			return []vectorstore.Result{}
		}
		return results
	}

	primary := genres[0]
	results, err := r.store.Search(ctx, queryVec, searchN, map[string]string{"genre": primary})
	if err != nil {
		results = nil
	}

	if len(results) < k/2 && len(genres) > 1 {
		secondary := genres[1]
		remainder := searchN - len(results)
		if remainder > 0 {
			more, err := r.store.Search(ctx, queryVec, remainder, map[string]string{"genre": secondary})
			if err == nil {
				results = append(results, more...)
			}
		}
	}

	if results == nil {
		results = []vectorstore.Result{}
	}
	return results
}

// randomizeResults keeps the top k/2 results in place and shuffles the
// rest, trimming to k (spec.md §4.J step 8).
func (r *Recommender) randomizeResults(results []vectorstore.Result, k int) []vectorstore.Result {
	half := k / 2
	if half > len(results) {
		half = len(results)
	}
	top := results[:half]
	remaining := append([]vectorstore.Result(nil), results[half:]...)
	r.rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	take := k - len(top)
	if take > len(remaining) {
		take = len(remaining)
	}
	return append(append([]vectorstore.Result(nil), top...), remaining[:take]...)
}

// buildEnrichedQuery composes the base text, an emotion descriptor, and
// energy/valence modifiers when they deviate from neutral by more than
// 0.2 (spec.md §4.J step 3).
func buildEnrichedQuery(userText string, state models.EmotionState) string {
	var b strings.Builder
	b.WriteString(userText)
	b.WriteString(" ")
	b.WriteString(descriptorFor(state.DominantEmotion))

	energy := state.Dimensions.Energy
	valence := state.Dimensions.Valence

	if energy-0.5 > 0.2 {
		b.WriteString(" energética intensa potente")
	} else if 0.5-energy > 0.2 {
		b.WriteString(" tranquila suave calmada")
	}

	if valence-0.5 > 0.2 {
		b.WriteString(" alegre positiva")
	} else if 0.5-valence > 0.2 {
		b.WriteString(" melancólica emotiva")
	}

	return b.String()
}

// explanation composes a one-sentence explanation from
// (dominant_emotion, energy) using a fixed template (spec.md §4.J step
// 9).
func explanation(state models.EmotionState) string {
	exp := fmt.Sprintf("Música para cuando te sientes %s", state.DominantEmotion)
	if state.Dimensions.Energy < 0.3 {
		exp += ", con ritmo suave"
	} else if state.Dimensions.Energy > 0.7 {
		exp += ", con mucha energía"
	}
	return exp + "."
}

// boostFavoriteGenre moves the user's historical favourite genre to the
// front of suggested_genres when it isn't already element 0. Supplemented
// feature (SPEC_FULL.md §4); it never makes suggested_genres empty and
// never changes dominant_emotion/dimensions.
func boostFavoriteGenre(state models.EmotionState, cm *memory.ContextManager) models.EmotionState {
	fav, ok := cm.FavoriteGenre()
	if !ok || fav == "" {
		return state
	}
	if len(state.SuggestedGenres) > 0 && state.SuggestedGenres[0] == fav {
		return state
	}

	reordered := make([]string, 0, len(state.SuggestedGenres)+1)
	reordered = append(reordered, fav)
	for _, g := range state.SuggestedGenres {
		if g != fav {
			reordered = append(reordered, g)
		}
	}
	state.SuggestedGenres = reordered
	return state
}
