package memory_test

import (
	"testing"

	"rhythmai/internal/memory"
	"rhythmai/internal/models"
)

func TestContextManager_DefaultContextWhenEmpty(t *testing.T) {
	enc := newEncryptor(t)
	cm := memory.NewContextManager(t.TempDir(), "user1", 50, 5, enc)

	ctx := cm.EnrichedContext()
	if ctx.ConversationContext != "Esta es tu primera conversación." {
		t.Errorf("expected first-conversation default text, got %q", ctx.ConversationContext)
	}
	if ctx.MusicPreferences.TotalInteractions != 0 {
		t.Errorf("expected 0 total interactions, got %d", ctx.MusicPreferences.TotalInteractions)
	}
	if len(ctx.EmotionHistory) != 0 {
		t.Errorf("expected no emotion history, got %d", len(ctx.EmotionHistory))
	}
}

func TestContextManager_AddInteractionUpdatesContext(t *testing.T) {
	enc := newEncryptor(t)
	cm := memory.NewContextManager(t.TempDir(), "user1", 50, 5, enc)

	state := models.NeutralDefault()
	state.DominantEmotion = "joy"
	state.SuggestedGenres = []string{"happy"}

	if err := cm.AddInteraction(models.Interaction{UserText: "hola", EmotionData: state}); err != nil {
		t.Fatalf("AddInteraction returned error: %v", err)
	}

	ctx := cm.EnrichedContext()
	if ctx.MusicPreferences.TotalInteractions != 1 {
		t.Errorf("expected 1 total interaction, got %d", ctx.MusicPreferences.TotalInteractions)
	}
	if len(ctx.EmotionHistory) != 1 || ctx.EmotionHistory[0].DominantEmotion != "joy" {
		t.Errorf("expected emotion history to contain the recorded joy state, got %+v", ctx.EmotionHistory)
	}
}

func TestContextManager_FavoriteGenre(t *testing.T) {
	enc := newEncryptor(t)
	cm := memory.NewContextManager(t.TempDir(), "user1", 50, 5, enc)

	if _, ok := cm.FavoriteGenre(); ok {
		t.Error("expected no favorite genre before any interaction")
	}

	for i := 0; i < 3; i++ {
		state := models.NeutralDefault()
		state.SuggestedGenres = []string{"rock"}
		_ = cm.AddInteraction(models.Interaction{UserText: "rock please", EmotionData: state})
	}

	genre, ok := cm.FavoriteGenre()
	if !ok || genre != "rock" {
		t.Errorf("expected favorite genre rock, got %q (ok=%v)", genre, ok)
	}
}

func TestContextManager_ClearAllRetainsProfile(t *testing.T) {
	enc := newEncryptor(t)
	dir := t.TempDir()
	cm := memory.NewContextManager(dir, "user1", 50, 5, enc)

	_ = cm.AddInteraction(models.Interaction{UserText: "hola", EmotionData: models.NeutralDefault()})
	if err := cm.ClearAll(); err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}

	ctx := cm.EnrichedContext()
	if ctx.MusicPreferences.TotalInteractions != 0 {
		t.Errorf("expected conversation history cleared, got %d interactions", ctx.MusicPreferences.TotalInteractions)
	}

	profile, err := memory.NewUserProfile(dir, "user1", enc).Get()
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if profile.Statistics.TotalSessions != 1 {
		t.Errorf("expected profile statistics retained after ClearAll (total_sessions=1), got %d", profile.Statistics.TotalSessions)
	}
}

func TestContextManager_PersonalizedPromptIncludesInput(t *testing.T) {
	enc := newEncryptor(t)
	cm := memory.NewContextManager(t.TempDir(), "user1", 50, 5, enc)

	prompt := cm.PersonalizedPrompt("¿qué me recomiendas?")
	if prompt == "" {
		t.Fatal("expected non-empty prompt")
	}
	if !contains(prompt, "¿qué me recomiendas?") {
		t.Errorf("expected prompt to include the current input, got %q", prompt)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
