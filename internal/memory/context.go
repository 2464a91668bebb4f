package memory

import (
	"fmt"

	"rhythmai/internal/crypto"
	"rhythmai/internal/models"
)

// EnrichedContext is the shape ContextManager.EnrichedContext always
// returns, even on internal failure (spec.md §4.I).
type EnrichedContext struct {
	ConversationContext string                    `json:"conversation_context"`
	MusicPreferences     models.PreferenceSummary `json:"music_preferences"`
	EmotionHistory       []models.EmotionState     `json:"emotion_history"`
	UserPreferences      models.Preferences        `json:"user_preferences"`
}

func defaultContext() EnrichedContext {
	return EnrichedContext{
		ConversationContext: "Esta es tu primera conversación.",
		MusicPreferences: models.PreferenceSummary{
			FavoriteGenres:    []string{},
			CommonEmotions:    []string{},
			TotalInteractions: 0,
		},
		EmotionHistory:  []models.EmotionState{},
		UserPreferences: models.Preferences{},
	}
}

// ContextManager is the facade over ConversationMemory and UserProfile
// (component I): it records interactions and returns enriched context,
// never raising — any internal error degrades to a default-shaped empty
// context (spec.md §4.I, §9 "exceptions as control flow").
type ContextManager struct {
	userID     string
	history    *ConversationMemory
	profile    *UserProfile
	windowSize int
}

// NewContextManager constructs a ContextManager for one user.
func NewContextManager(dir, userID string, maxHistory, windowSize int, enc *crypto.Encryptor) *ContextManager {
	return &ContextManager{
		userID:     userID,
		history:    NewConversationMemory(dir, userID, maxHistory, enc),
		profile:    NewUserProfile(dir, userID, enc),
		windowSize: windowSize,
	}
}

// AddInteraction appends the interaction to the conversation log and
// updates the profile's statistics. Errors are returned (the Recommender
// logs and drops them per spec.md §4.J step 10 — this method itself is
// not the swallow point).
func (c *ContextManager) AddInteraction(interaction models.Interaction) error {
	if err := c.history.Append(interaction); err != nil {
		return fmt.Errorf("context: appending interaction: %w", err)
	}
	if err := c.profile.UpdateStatistics(interaction.EmotionData.DominantEmotion); err != nil {
		return fmt.Errorf("context: updating statistics: %w", err)
	}
	return nil
}

// EnrichedContext returns conversation context, music preferences,
// emotion history and user preferences. On any internal error it returns
// the default-shaped empty context instead of propagating — the
// Recommender depends on always getting a well-shaped value.
func (c *ContextManager) EnrichedContext() EnrichedContext {
	ctx, err := c.enrichedContext()
	if err != nil {
		return defaultContext()
	}
	return ctx
}

func (c *ContextManager) enrichedContext() (EnrichedContext, error) {
	convoText, err := c.history.ConversationContext(2000)
	if err != nil {
		return EnrichedContext{}, err
	}

	summary, err := c.history.PreferencesSummary()
	if err != nil {
		return EnrichedContext{}, err
	}
	if summary == nil {
		summary = &models.PreferenceSummary{FavoriteGenres: []string{}, CommonEmotions: []string{}}
	}

	emotionHistory, err := c.history.EmotionHistory(c.windowSize)
	if err != nil {
		return EnrichedContext{}, err
	}

	profile, err := c.profile.Get()
	if err != nil {
		return EnrichedContext{}, err
	}

	return EnrichedContext{
		ConversationContext: convoText,
		MusicPreferences:    *summary,
		EmotionHistory:      emotionHistory,
		UserPreferences:     profile.Preferences,
	}, nil
}

// PersonalizedPrompt builds a context-enriched prompt string from
// conversation history, favourite genres and recent emotions. Not
// required by the core recommendation path; kept for any future
// prompt-construction caller, the Go analogue of
// context_manager.py's get_personalized_prompt.
func (c *ContextManager) PersonalizedPrompt(currentInput string) string {
	ctx := c.EnrichedContext()

	prompt := ctx.ConversationContext
	if len(ctx.MusicPreferences.FavoriteGenres) > 0 {
		prompt += fmt.Sprintf("\nGéneros favoritos: %v", ctx.MusicPreferences.FavoriteGenres)
	}
	if len(ctx.EmotionHistory) > 0 {
		prompt += fmt.Sprintf("\nEmoción reciente: %s", ctx.EmotionHistory[len(ctx.EmotionHistory)-1].DominantEmotion)
	}
	prompt += "\n" + currentInput
	return prompt
}

// ClearAll deletes the user's conversation log; the profile is retained.
func (c *ContextManager) ClearAll() error {
	return c.history.Clear()
}

// FavoriteGenre returns the user's single favourite genre, if any
// preference data exists, for the Recommender's history-aware genre
// boost.
func (c *ContextManager) FavoriteGenre() (string, bool) {
	summary, err := c.history.PreferencesSummary()
	if err != nil || summary == nil || len(summary.FavoriteGenres) == 0 {
		return "", false
	}
	return summary.FavoriteGenres[0], true
}
