package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mikobot/pkg/state"
)

const profileKeyPrefix = "profile"

// Profile stores user preferences per (platform, user).
type Profile struct {
	Language      string    `json:"language,omitempty"`
	PreferredName string    `json:"preferred_name,omitempty"`
	AFK           bool      `json:"afk,omitempty"`
	AFKReason     string    `json:"afk_reason,omitempty"`
	AFKSince      time.Time `json:"afk_since,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Profiles manages profile persistence.
type Profiles struct {
	store state.KV
}

// NewProfiles creates a new profile manager.
func NewProfiles(store state.KV) *Profiles {
	return &Profiles{store: store}
}

// Get gets a profile by platform and user ID.
func (m *Profiles) Get(ctx context.Context, platform Platform, userID string) (Profile, bool, error) {
	if m == nil || m.store == nil {
		return Profile{}, false, nil
	}

	v, ok, err := m.store.Get(ctx, profileKey(platform, userID))
	if err != nil || !ok {
		return Profile{}, false, err
	}

	p, err := decodeProfile(v)
	if err != nil {
		return Profile{}, false, err
	}

	return p, true, nil
}

// Save saves a profile.
func (m *Profiles) Save(ctx context.Context, platform Platform, userID string, p Profile) error {
	if m == nil || m.store == nil {
		return nil
	}

	// Keep "" as "no preference" so empty profiles remain removable.
	if p.Language != "" {
		p.Language = NormalizeLanguage(p.Language)
	}
	p.PreferredName = strings.TrimSpace(p.PreferredName)
	p.UpdatedAt = time.Now()

	return m.store.Set(ctx, profileKey(platform, userID), p)
}

// Clear removes a profile.
func (m *Profiles) Clear(ctx context.Context, platform Platform, userID string) error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, profileKey(platform, userID))
}

// Language returns the user's preferred language, or "" when no
// preference is stored.
func (m *Profiles) Language(ctx context.Context, platform Platform, userID string) string {
	p, ok, err := m.Get(ctx, platform, userID)
	if err != nil || !ok {
		return ""
	}
	return p.Language
}

// NormalizeLanguage returns a normalized language code with default en.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch lang {
	case "en", "es", "ru":
		return lang
	default:
		return "en"
	}
}

func profileKey(platform Platform, userID string) string {
	return fmt.Sprintf("%s:%s:%s", profileKeyPrefix, platform, strings.TrimSpace(userID))
}

// decodeProfile converts a stored value back to a Profile. File-backed
// stores round-trip structs through JSON maps.
func decodeProfile(v any) (Profile, error) {
	switch val := v.(type) {
	case Profile:
		return val, nil
	case string:
		var p Profile
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			return Profile{}, err
		}
		return p, nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return Profile{}, err
		}
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return Profile{}, err
		}
		return p, nil
	}
}
