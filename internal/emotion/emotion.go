// Package emotion implements the EmotionAnalyzer: activity-pattern
// extraction plus semantic prototype classification, turning free text
// into a structured models.EmotionState. Grounded step-for-step on
// original_source/rhythmai/core/emotion_analyzer.py (analyze,
// _extract_activity_context, _analyze_semantic_context,
// _activity_type_to_emotion, _sentiment_to_emotion,
// _build_emotion_response).
package emotion

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"rhythmai/internal/embedder"
	"rhythmai/internal/models"
	"rhythmai/internal/prototypes"
	"rhythmai/internal/sentiment"
)

const (
	maxSentimentCodePoints = 512
	baseThreshold          = 0.35
	loweredThreshold       = 0.30
	highConfidenceCutoff   = 0.8
)

// activityPatterns mirror the Spanish expression family the original
// extractor scans for, in priority order; the first match wins.
var activityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)para\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)mientras\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)cuando\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)al\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)quiero\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)necesito\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)voy a\s+(\w+(?:\s+\w+){0,2})`),
	regexp.MustCompile(`(?i)(?:música|canciones)\s+(?:para|de)\s+(\w+(?:\s+\w+){0,2})`),
}

var ignoreWords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true, "un": true, "una": true,
	"mi": true, "tu": true, "su": true, "mis": true, "tus": true, "sus": true,
	"música": true, "canciones": true, "de": true, "del": true, "que": true,
}

// strongMapping is the direct 1:1 mapping for high-confidence activity
// categories (spec.md §4.E step 5).
var strongMapping = map[string]string{
	"happy":     "joy",
	"sad":       "sadness",
	"angry":     "anger",
	"romantic":  "love",
	"sleep":     "sleep",
	"workout":   "workout",
	"party":     "party",
	"nostalgic": "nostalgic",
	"motivated": "motivated",
	"stressed":  "stressed",
	"confident": "confident",
	"relaxed":   "relaxed",
	"bored":     "bored",
}

// genreTable is the authoritative emotion -> (genres, valence, energy)
// table from spec.md §6.
var genreTable = map[string]struct {
	genres  []string
	valence float64
	energy  float64
}{
	"sadness":    {[]string{"sad", "chill", "pop"}, 0.20, 0.30},
	"joy":        {[]string{"happy", "pop", "dance", "party"}, 0.90, 0.70},
	"anger":      {[]string{"rock", "workout"}, 0.30, 0.90},
	"fear":       {[]string{"chill", "sad"}, 0.30, 0.40},
	"love":       {[]string{"pop", "happy"}, 0.80, 0.50},
	"neutral":    {[]string{"pop", "happy", "party"}, 0.50, 0.50},
	"excitement": {[]string{"party", "dance", "happy"}, 0.85, 0.95},
	"focus":      {[]string{"chill", "pop"}, 0.50, 0.40},
	"sleep":      {[]string{"chill", "sad"}, 0.60, 0.15},
	"party":      {[]string{"party", "dance", "happy"}, 0.90, 0.95},
	"workout":    {[]string{"workout", "rock", "party"}, 0.70, 0.95},
	"chill":      {[]string{"chill", "sad", "pop"}, 0.60, 0.20},
	"nostalgic":  {[]string{"sad", "pop", "chill"}, 0.40, 0.35},
	"motivated":  {[]string{"workout", "rock", "party", "happy"}, 0.80, 0.85},
	"stressed":   {[]string{"chill", "sad"}, 0.30, 0.60},
	"confident":  {[]string{"pop", "rock", "party"}, 0.85, 0.75},
	"relaxed":    {[]string{"chill", "pop"}, 0.70, 0.25},
	"bored":      {[]string{"pop", "party", "dance"}, 0.40, 0.30},
}

// Analyzer turns free text into a models.EmotionState. It never
// propagates a partial state: any internal error degrades to the neutral
// default (spec.md §4.E edge cases, §9 "exceptions as control flow").
type Analyzer struct {
	sentiment  sentiment.Classifier
	embedder   embedder.Embedder
	prototypes prototypes.Set
}

// New constructs an Analyzer. proto is typically produced once at process
// start via prototypes.Cache.Load and shared read-only thereafter.
func New(clf sentiment.Classifier, emb embedder.Embedder, proto prototypes.Set) *Analyzer {
	return &Analyzer{sentiment: clf, embedder: emb, prototypes: proto}
}

// Analyze runs the full pipeline. It never returns an error: any failure
// degrades to models.NeutralDefault().
func (a *Analyzer) Analyze(ctx context.Context, text string) models.EmotionState {
	if strings.TrimSpace(text) == "" {
		return models.NeutralDefault()
	}

	state, err := a.analyze(ctx, text)
	if err != nil {
		return models.NeutralDefault()
	}
	return state
}

func (a *Analyzer) analyze(ctx context.Context, text string) (models.EmotionState, error) {
	sentimentText := truncateCodePoints(text, maxSentimentCodePoints)
	dist := a.sentiment.Classify(sentimentText)
	sentimentLabel, sentimentConf := dist.Argmax()

	activityWindow := extractActivityContext(text)

	vec, err := a.embedder.Encode(ctx, activityWindow)
	if err != nil {
		return models.EmotionState{}, err
	}

	category, similarity := bestPrototype(vec, a.prototypes)

	threshold := baseThreshold
	if sentimentConf > highConfidenceCutoff {
		threshold = loweredThreshold
	}

	var emotionLabel string
	if category != "" && similarity >= threshold {
		emotionLabel = activityTypeToEmotion(category, sentimentLabel)
	} else {
		emotionLabel = sentimentToEmotion(sentimentLabel)
	}

	return buildResponse(emotionLabel, sentimentConf), nil
}

// extractActivityContext scans the lowercased text for the closed set of
// expression patterns; on the first match it expands a +-2 token window
// around the matched phrase's anchor word, dropping stopwords. If nothing
// matches, the whole text is used.
func extractActivityContext(text string) string {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	for _, pattern := range activityPatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		phrase := strings.Fields(match[1])
		if len(phrase) == 0 {
			continue
		}
		anchor := phrase[0]
		idx := indexOf(words, anchor)
		if idx == -1 {
			return strings.Join(filterStopwords(phrase), " ")
		}
		start := idx - 2
		if start < 0 {
			start = 0
		}
		end := idx + 3
		if end > len(words) {
			end = len(words)
		}
		window := filterStopwords(words[start:end])
		if len(window) == 0 {
			return text
		}
		return strings.Join(window, " ")
	}

	return text
}

func filterStopwords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if ignoreWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func indexOf(words []string, target string) int {
	for i, w := range words {
		if w == target {
			return i
		}
	}
	return -1
}

// bestPrototype returns the highest-similarity category and its cosine
// similarity, or ("", 0) if the prototype set is empty.
func bestPrototype(vec []float32, set prototypes.Set) (string, float64) {
	if len(set) == 0 {
		return "", 0
	}
	categories := make([]string, 0, len(set))
	for cat := range set {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	bestCat := ""
	bestSim := math.Inf(-1)
	for _, cat := range categories {
		sim := cosine(vec, set[cat])
		if sim > bestSim {
			bestSim = sim
			bestCat = cat
		}
	}
	return bestCat, bestSim
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// activityTypeToEmotion applies the strong/weak mapping tables (spec.md
// §4.E step 5).
func activityTypeToEmotion(category, sentimentLabel string) string {
	if emotion, ok := strongMapping[category]; ok {
		return emotion
	}

	norm := normalizeSentiment(sentimentLabel)
	switch category {
	case "high_energy":
		switch norm {
		case "negative":
			return "stressed"
		default: // positive or neutral
			return "excitement"
		}
	case "low_energy":
		switch norm {
		case "negative":
			return "sadness"
		case "neutral":
			return "focus"
		default: // positive
			return "relaxed"
		}
	default:
		return sentimentToEmotion(sentimentLabel)
	}
}

func normalizeSentiment(label string) string {
	switch label {
	case "pos":
		return "positive"
	case "neg":
		return "negative"
	default:
		return label
	}
}

func sentimentToEmotion(label string) string {
	switch normalizeSentiment(label) {
	case "positive":
		return "joy"
	case "negative":
		return "sadness"
	default:
		return "neutral"
	}
}

// buildResponse looks up the fixed genre/valence/energy table for the
// chosen emotion (spec.md §6); unknown labels fall back to neutral's row.
func buildResponse(emotionLabel string, confidence float64) models.EmotionState {
	row, ok := genreTable[emotionLabel]
	if !ok {
		emotionLabel = "neutral"
		row = genreTable["neutral"]
	}
	return models.EmotionState{
		DominantEmotion: emotionLabel,
		DominantScore:   confidence,
		SuggestedGenres: append([]string(nil), row.genres...),
		Dimensions:      models.Dimensions{Valence: row.valence, Energy: row.energy},
		MusicParams:     models.MusicParams{TargetValence: row.valence, TargetEnergy: row.energy},
	}
}

func truncateCodePoints(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
