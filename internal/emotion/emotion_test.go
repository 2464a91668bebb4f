package emotion_test

import (
	"context"
	"testing"

	"rhythmai/internal/embedder"
	"rhythmai/internal/emotion"
	"rhythmai/internal/prototypes"
	"rhythmai/internal/sentiment"
)

func newAnalyzer(t *testing.T) *emotion.Analyzer {
	t.Helper()
	emb := embedder.New("test-model", 64)
	cache := prototypes.New(t.TempDir(), emb, prototypes.KeywordGroups)
	set, err := cache.Load(context.Background())
	if err != nil {
		t.Fatalf("building prototype cache: %v", err)
	}
	return emotion.New(sentiment.New("test-sentiment-model"), emb, set)
}

func TestAnalyze_EmptyInputReturnsNeutralDefault(t *testing.T) {
	a := newAnalyzer(t)
	state := a.Analyze(context.Background(), "")

	if state.DominantEmotion != "neutral" {
		t.Errorf("expected dominant_emotion=neutral, got %s", state.DominantEmotion)
	}
	if state.DominantScore != 0.5 {
		t.Errorf("expected dominant_score=0.5, got %f", state.DominantScore)
	}
	// Full-list equality against spec scenario S4's literal expectation,
	// matching the "neutral" row of the genre table exactly.
	wantGenres := []string{"pop", "happy", "party"}
	if len(state.SuggestedGenres) != len(wantGenres) {
		t.Fatalf("expected suggested_genres=%v, got %v", wantGenres, state.SuggestedGenres)
	}
	for i, g := range wantGenres {
		if state.SuggestedGenres[i] != g {
			t.Errorf("expected suggested_genres=%v, got %v", wantGenres, state.SuggestedGenres)
			break
		}
	}
}

func TestAnalyze_InvariantsHoldAcrossInputs(t *testing.T) {
	a := newAnalyzer(t)
	inputs := []string{
		"Estoy muy feliz, tengo ganas de bailar",
		"Estoy triste y necesito música suave",
		"quiero música para entrenar en el gimnasio",
		"no sé qué quiero escuchar hoy",
		"",
	}
	for _, text := range inputs {
		state := a.Analyze(context.Background(), text)
		if len(state.SuggestedGenres) == 0 {
			t.Errorf("text %q: suggested_genres must be non-empty", text)
		}
		if state.DominantScore < 0 || state.DominantScore > 1 {
			t.Errorf("text %q: dominant_score out of range: %f", text, state.DominantScore)
		}
		if state.Dimensions.Valence < 0 || state.Dimensions.Valence > 1 {
			t.Errorf("text %q: valence out of range: %f", text, state.Dimensions.Valence)
		}
		if state.Dimensions.Energy < 0 || state.Dimensions.Energy > 1 {
			t.Errorf("text %q: energy out of range: %f", text, state.Dimensions.Energy)
		}
	}
}

func TestAnalyze_WorkoutActivityPhrase(t *testing.T) {
	a := newAnalyzer(t)
	state := a.Analyze(context.Background(), "quiero música para entrenar en el gimnasio")

	if state.DominantEmotion != "workout" {
		t.Errorf("expected dominant_emotion=workout, got %s", state.DominantEmotion)
	}
	if state.SuggestedGenres[0] != "workout" {
		t.Errorf("expected suggested_genres[0]=workout, got %v", state.SuggestedGenres)
	}
}

func TestAnalyze_SadLowEnergy(t *testing.T) {
	a := newAnalyzer(t)
	state := a.Analyze(context.Background(), "Estoy triste y necesito música suave")

	if state.DominantEmotion != "sadness" {
		t.Errorf("expected dominant_emotion=sadness, got %s", state.DominantEmotion)
	}
	if state.SuggestedGenres[0] != "sad" {
		t.Errorf("expected suggested_genres[0]=sad, got %v", state.SuggestedGenres)
	}
	if state.Dimensions.Energy > 0.35 {
		t.Errorf("expected energy <= 0.35, got %f", state.Dimensions.Energy)
	}
}
