// Package sentiment wraps the sentiment model the EmotionAnalyzer depends
// on: a black box returning a labelled distribution over {positive,
// negative, neutral}. The real model is out of scope; this package provides a deterministic lexicon-based stand-in built the
// way the teacher builds its keyword-scoring mood detector
// (services/mood/interface.go's MoodKeywords table), generalised from 8
// moods down to the three-label sentiment set this component needs.
package sentiment

import "strings"

// Score is one labelled probability in a Classification.
type Score struct {
	Label string
	Value float64
}

// Classification is a probability distribution that sums to 1 over a
// small closed label set, ordered by descending Value.
type Classification []Score

// Argmax returns the highest-scoring label and its score. Classification
// is always non-empty by construction (see Classifier.Classify).
func (c Classification) Argmax() (label string, score float64) {
	return c[0].Label, c[0].Value
}

// Classifier is the black box the EmotionAnalyzer depends on. If the
// dependency is unavailable, callers fall through to the neutral default
// rather than treating this as fatal (spec.md §4.C).
type Classifier interface {
	Classify(text string) Classification
}

var positiveWords = []string{
	"feliz", "alegre", "contento", "genial", "bien", "bailar", "fiesta",
	"amor", "emocionado", "energía", "fuerte", "motivado", "confiado",
}

var negativeWords = []string{
	"triste", "mal", "dolor", "enojado", "enojo", "miedo", "ansioso",
	"estresado", "estres", "cansado", "aburrido", "solo", "sola",
}

type lexiconClassifier struct {
	modelID string
}

// New returns the deterministic lexicon-based Classifier. modelID is the
// sentiment model identifier (spec.md §6 EMOTION_MODEL); this stand-in
// classifier doesn't load a model by that name, but carries the
// configured identifier so callers that log or tag output by model (e.g.
// the prototype cache's sibling, once a real model is swapped in) have
// somewhere to read it from.
func New(modelID string) Classifier {
	return lexiconClassifier{modelID: modelID}
}

// ModelID returns the configured sentiment model identifier.
func (c lexiconClassifier) ModelID() string { return c.modelID }

// Classify scores text by counting lexicon hits; text with no hits
// defaults to neutral. When positive and negative hits are equal, positive
// ranks first. The result always sums to 1 and is never empty.
func (lexiconClassifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)
	total := pos + neg

	if total == 0 {
		return Classification{
			{Label: "neutral", Value: 0.6},
			{Label: "positive", Value: 0.2},
			{Label: "negative", Value: 0.2},
		}
	}

	posScore := 0.15 + 0.7*float64(pos)/float64(total)
	negScore := 0.15 + 0.7*float64(neg)/float64(total)
	remainder := 1.0 - posScore - negScore
	if remainder < 0 {
		remainder = 0
	}

	scores := Classification{
		{Label: "positive", Value: posScore},
		{Label: "negative", Value: negScore},
		{Label: "neutral", Value: remainder},
	}
	sortDescending(scores)
	return scores
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

func sortDescending(s Classification) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Value > s[j-1].Value; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
