// Package memory implements the encrypted per-user conversation log and
// profile (components G and H) and the ContextManager facade (component
// I) over them. Grounded on original_source/rhythmai/memory/
// conversation_memory.py, user_profile.py and context_manager.py,
// including the exact migration path for historical unencrypted files.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rhythmai/internal/crypto"
	"rhythmai/internal/models"
)

// ConversationMemory is an append-only, encrypted, per-user interaction
// log. One file per user: <dir>/<user_id>_history.enc. Concurrent writers
// to the same user are out of scope (single-process assumption); callers needing multi-process safety must add an
// external lock keyed by user_id.
type ConversationMemory struct {
	dir        string
	userID     string
	maxHistory int
	enc        *crypto.Encryptor
}

type historyFile struct {
	History []models.Interaction `json:"history"`
}

// NewConversationMemory constructs a ConversationMemory for one user.
func NewConversationMemory(dir, userID string, maxHistory int, enc *crypto.Encryptor) *ConversationMemory {
	return &ConversationMemory{dir: dir, userID: userID, maxHistory: maxHistory, enc: enc}
}

func (c *ConversationMemory) path() string {
	return filepath.Join(c.dir, c.userID+"_history.enc")
}

// load reads the full history, migrating a legacy plaintext file to the
// encrypted format on first read.
func (c *ConversationMemory) load() ([]models.Interaction, error) {
	raw, err := os.ReadFile(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memory: reading history file: %w", err)
	}

	var hf historyFile
	if err := c.enc.DecryptJSON(string(raw), &hf); err == nil {
		return hf.History, nil
	}

	// Fall back to a legacy plaintext read; on success, migrate by
	// re-encrypting and overwriting (spec.md §9 "Encryption migration").
	if err := json.Unmarshal(raw, &hf); err != nil {
		return nil, fmt.Errorf("memory: history file is neither valid ciphertext nor plaintext json: %w", err)
	}
	if err := c.save(hf.History); err != nil {
		return nil, fmt.Errorf("memory: migrating legacy history file: %w", err)
	}
	return hf.History, nil
}

// save truncates to the rolling cap and writes the whole file
// (read-modify-write, no streaming, matching _save_interaction).
func (c *ConversationMemory) save(history []models.Interaction) error {
	if len(history) > c.maxHistory {
		history = history[len(history)-c.maxHistory:]
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("memory: creating memory dir: %w", err)
	}
	ciphertext, err := c.enc.EncryptJSON(historyFile{History: history})
	if err != nil {
		return fmt.Errorf("memory: encrypting history: %w", err)
	}

	tmp := c.path() + ".tmp"
	if err := os.WriteFile(tmp, []byte(ciphertext), 0o600); err != nil {
		return fmt.Errorf("memory: writing temp history file: %w", err)
	}
	if err := os.Rename(tmp, c.path()); err != nil {
		return fmt.Errorf("memory: renaming temp history file into place: %w", err)
	}
	return nil
}

// Append records a new interaction, truncating to the rolling cap.
func (c *ConversationMemory) Append(interaction models.Interaction) error {
	history, err := c.load()
	if err != nil {
		return err
	}
	history = append(history, interaction)
	return c.save(history)
}

// Recent returns the last n interactions in insertion order. n <= 0
// returns the full (capped) history.
func (c *ConversationMemory) Recent(n int) ([]models.Interaction, error) {
	history, err := c.load()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(history) {
		return history, nil
	}
	return history[len(history)-n:], nil
}

// ConversationContext builds a human-readable text summary of recent
// interactions, truncated to roughly maxChars characters. Mirrors
// get_conversation_context's 100-char-per-turn truncation and trailing
// ellipsis.
func (c *ConversationMemory) ConversationContext(maxChars int) (string, error) {
	history, err := c.load()
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "Esta es tu primera conversación.", nil
	}

	var b []byte
	for i, it := range history {
		line := fmt.Sprintf("%d. %s (emoción: %s)\n", i+1, truncate(it.UserText, 100), it.EmotionData.DominantEmotion)
		b = append(b, line...)
	}
	if len(b) > maxChars {
		b = append(b[:maxChars], "..."...)
	}
	return string(b), nil
}

// EmotionHistory returns the last n emotion snapshots.
func (c *ConversationMemory) EmotionHistory(n int) ([]models.EmotionState, error) {
	recent, err := c.Recent(n)
	if err != nil {
		return nil, err
	}
	out := make([]models.EmotionState, 0, len(recent))
	for _, it := range recent {
		out = append(out, it.EmotionData)
	}
	return out, nil
}

// PreferencesSummary recomputes top-5 favourite genres and common
// emotions from the full log; it is never persisted on its own.
func (c *ConversationMemory) PreferencesSummary() (*models.PreferenceSummary, error) {
	history, err := c.load()
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	genreCounts := map[string]int{}
	emotionCounts := map[string]int{}
	for _, it := range history {
		for _, genre := range it.EmotionData.SuggestedGenres {
			genreCounts[genre]++
		}
		emotionCounts[it.EmotionData.DominantEmotion]++
	}

	return &models.PreferenceSummary{
		FavoriteGenres:    topN(genreCounts, 5),
		CommonEmotions:    topN(emotionCounts, 5),
		TotalInteractions: len(history),
	}, nil
}

// Clear deletes the user's conversation log file. A missing file is not
// an error.
func (c *ConversationMemory) Clear() error {
	if err := os.Remove(c.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("memory: clearing history: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// topN returns up to n keys ordered by descending count, ties broken
// alphabetically for determinism.
func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
