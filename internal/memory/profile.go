package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rhythmai/internal/crypto"
	"rhythmai/internal/models"
)

// UserProfile is the encrypted per-user aggregate: one file per user at
// <dir>/<user_id>_profile.enc.
type UserProfile struct {
	dir    string
	userID string
	enc    *crypto.Encryptor
}

// NewUserProfile constructs a UserProfile accessor for one user.
func NewUserProfile(dir, userID string, enc *crypto.Encryptor) *UserProfile {
	return &UserProfile{dir: dir, userID: userID, enc: enc}
}

func (p *UserProfile) path() string {
	return filepath.Join(p.dir, p.userID+"_profile.enc")
}

func defaultProfile(userID string) models.UserProfile {
	return models.UserProfile{
		UserID:    userID,
		CreatedAt: nowUTC(),
		Preferences: models.Preferences{
			FavoriteGenres:        []string{},
			DislikedGenres:        []string{},
			PreferredEnergyRange:  [2]float64{0.3, 0.7},
			PreferredValenceRange: [2]float64{0.3, 0.7},
			Language:              "es",
		},
		Statistics:       models.Statistics{},
		ListeningHistory: []models.HistoryEntry{},
	}
}

// load returns the profile, creating a default one if the file doesn't
// exist yet, and migrating a legacy plaintext file on first read.
func (p *UserProfile) load() (models.UserProfile, error) {
	raw, err := os.ReadFile(p.path())
	if err != nil {
		if os.IsNotExist(err) {
			return defaultProfile(p.userID), nil
		}
		return models.UserProfile{}, fmt.Errorf("memory: reading profile file: %w", err)
	}

	var profile models.UserProfile
	if err := p.enc.DecryptJSON(string(raw), &profile); err == nil {
		return profile, nil
	}

	if err := json.Unmarshal(raw, &profile); err != nil {
		return models.UserProfile{}, fmt.Errorf("memory: profile file is neither valid ciphertext nor plaintext json: %w", err)
	}
	if err := p.save(profile); err != nil {
		return models.UserProfile{}, fmt.Errorf("memory: migrating legacy profile file: %w", err)
	}
	return profile, nil
}

func (p *UserProfile) save(profile models.UserProfile) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("memory: creating memory dir: %w", err)
	}
	ciphertext, err := p.enc.EncryptJSON(profile)
	if err != nil {
		return fmt.Errorf("memory: encrypting profile: %w", err)
	}

	tmp := p.path() + ".tmp"
	if err := os.WriteFile(tmp, []byte(ciphertext), 0o600); err != nil {
		return fmt.Errorf("memory: writing temp profile file: %w", err)
	}
	if err := os.Rename(tmp, p.path()); err != nil {
		return fmt.Errorf("memory: renaming temp profile file into place: %w", err)
	}
	return nil
}

// Get returns the current profile, creating a default one on first
// access.
func (p *UserProfile) Get() (models.UserProfile, error) {
	return p.load()
}

// UpdatePreferences updates only the known preference fields of the
// profile and persists it.
func (p *UserProfile) UpdatePreferences(prefs models.Preferences) error {
	profile, err := p.load()
	if err != nil {
		return err
	}
	profile.Preferences = prefs
	return p.save(profile)
}

// AddToHistory appends a listened track, capped at the last 100 entries.
func (p *UserProfile) AddToHistory(track models.Track) error {
	profile, err := p.load()
	if err != nil {
		return err
	}
	profile.ListeningHistory = append(profile.ListeningHistory, models.HistoryEntry{
		Timestamp: nowUTC(),
		Track:     track,
	})
	if len(profile.ListeningHistory) > 100 {
		profile.ListeningHistory = profile.ListeningHistory[len(profile.ListeningHistory)-100:]
	}
	return p.save(profile)
}

// UpdateStatistics increments total_sessions, sets last_session to now,
// and — if emotion is non-empty — overwrites most_common_emotion with
// that value.
//
// This intentionally does NOT recompute the true mode across history: it
// always stores the most recently observed emotion. This mirrors
// user_profile.py's update_statistics exactly (see DESIGN.md open
// question 2) and the Recommender never relies on this
// field being the true mode.
func (p *UserProfile) UpdateStatistics(emotion string) error {
	profile, err := p.load()
	if err != nil {
		return err
	}
	profile.Statistics.TotalSessions++
	now := nowUTC()
	profile.Statistics.LastSession = &now
	if emotion != "" {
		profile.Statistics.MostCommonEmotion = emotion
	}
	return p.save(profile)
}

// IncrementRecommendations increments total_recommendations by one.
func (p *UserProfile) IncrementRecommendations() error {
	profile, err := p.load()
	if err != nil {
		return err
	}
	profile.Statistics.TotalRecommendations++
	return p.save(profile)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
