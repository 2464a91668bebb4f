// Package models holds the shared data types that cross component
// boundaries: catalogue tracks, emotional state, per-user interactions and
// aggregates.
package models

import "time"

// Track is an immutable catalogue record once inserted into a VectorStore.
type Track struct {
	TrackID     string `json:"track_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	URL         string `json:"url"`
	AlbumImage  string `json:"album_image"`
	PreviewURL  string `json:"preview_url"`
}

// Dimensions is the valence/energy pair attached to an EmotionState.
type Dimensions struct {
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
}

// MusicParams mirrors Dimensions today; it is kept as a distinct type
// because the recommender is allowed to diverge target parameters from the
// raw classifier dimensions in the future without changing EmotionState's
// shape.
type MusicParams struct {
	TargetValence float64 `json:"target_valence"`
	TargetEnergy  float64 `json:"target_energy"`
}

// EmotionState is produced by the EmotionAnalyzer and consumed by the
// Recommender. SuggestedGenres is never empty: a model that produced no
// signal falls back to the neutral default (dominant_emotion=neutral,
// dominant_score=0.5, suggested_genres=["pop", "happy", "party"]).
type EmotionState struct {
	DominantEmotion string      `json:"dominant_emotion"`
	DominantScore   float64     `json:"dominant_score"`
	SuggestedGenres []string    `json:"suggested_genres"`
	Dimensions      Dimensions  `json:"dimensions"`
	MusicParams     MusicParams `json:"music_params"`
}

// NeutralDefault is the state returned whenever the analyzer pipeline can't
// produce a signal (empty input, internal error). It mirrors the "neutral"
// row of the genre table (internal/emotion's genreTable) exactly, since the
// empty-text guard is just a shortcut through the same table lookup every
// other emotion goes through.
func NeutralDefault() EmotionState {
	return EmotionState{
		DominantEmotion: "neutral",
		DominantScore:   0.5,
		SuggestedGenres: []string{"pop", "happy", "party"},
		Dimensions:      Dimensions{Valence: 0.5, Energy: 0.5},
		MusicParams:     MusicParams{TargetValence: 0.5, TargetEnergy: 0.5},
	}
}

// Interaction is one append-only entry in a user's conversation log.
type Interaction struct {
	Timestamp       time.Time    `json:"timestamp"`
	UserText        string       `json:"user_text"`
	EmotionData     EmotionState `json:"emotion_data"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

// Preferences holds the static, user-editable side of a profile.
type Preferences struct {
	FavoriteGenres       []string `json:"favorite_genres"`
	DislikedGenres       []string `json:"disliked_genres"`
	PreferredEnergyRange [2]float64 `json:"preferred_energy_range"`
	PreferredValenceRange [2]float64 `json:"preferred_valence_range"`
	Language             string   `json:"language"`
}

// Statistics is the running aggregate side of a profile.
//
// MostCommonEmotion is intentionally overwritten with the most recently
// observed emotion on every update, not recomputed as a true mode. This
// mirrors the source system's behaviour exactly and must not be "fixed"
// without a product decision: the Recommender never relies on this field
// being the true mode.
type Statistics struct {
	TotalSessions        int        `json:"total_sessions"`
	TotalRecommendations int        `json:"total_recommendations"`
	MostCommonEmotion    string     `json:"most_common_emotion"`
	LastSession          *time.Time `json:"last_session"`
}

// HistoryEntry is one bounded entry in UserProfile.ListeningHistory.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Track     Track     `json:"track"`
}

// UserProfile is the encrypted per-user aggregate in internal/memory.
type UserProfile struct {
	UserID           string         `json:"user_id"`
	CreatedAt        time.Time      `json:"created_at"`
	Preferences      Preferences    `json:"preferences"`
	Statistics       Statistics     `json:"statistics"`
	ListeningHistory []HistoryEntry `json:"listening_history"`
}

// PreferenceSummary is derived on demand from the conversation log; it is
// never persisted on its own.
type PreferenceSummary struct {
	FavoriteGenres    []string `json:"favorite_genres"`
	CommonEmotions    []string `json:"common_emotions"`
	TotalInteractions int      `json:"total_interactions"`
}
