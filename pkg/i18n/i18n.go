// Package i18n resolves symbolic reason codes to user-facing text.
// The engine never hardcodes chat strings; every denial, rejection and
// failure message goes through a Translator keyed by the user's language.
package i18n

import (
	"strings"
)

// Key is a symbolic message key.
type Key string

const (
	// KeyInsufficientRole when the user's role is below the command's requirement.
	KeyInsufficientRole Key = "denied.role"
	// KeyPlatformNotSupported when the command is not eligible on the platform.
	KeyPlatformNotSupported Key = "denied.platform"
	// KeyOnCooldown when the cooldown tracker rejected the invocation.
	KeyOnCooldown Key = "cooldown.wait"
	// KeyCommandFailed when the command body faulted. Never includes
	// internal error detail.
	KeyCommandFailed Key = "command.failed"
	// KeyUnknownSubcommand for built-in commands with subcommand syntax.
	KeyUnknownSubcommand Key = "command.unknown_subcommand"
)

// DefaultLanguage is the fallback for unknown languages and missing keys.
const DefaultLanguage = "en"

// Translator resolves message keys to localized text.
type Translator struct {
	tables map[string]map[Key]string
}

// New creates a Translator with the built-in message tables.
func New() *Translator {
	return &Translator{tables: messages}
}

// T resolves key for the given language, substituting {placeholder}
// tokens from args. Unknown languages and missing keys fall back to
// English; a key missing there too returns the key itself so broken
// lookups are visible rather than silent.
func (t *Translator) T(lang string, key Key, args map[string]string) string {
	text, ok := t.lookup(normalizeLang(lang), key)
	if !ok {
		text, ok = t.lookup(DefaultLanguage, key)
	}
	if !ok {
		return string(key)
	}

	for name, value := range args {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

func (t *Translator) lookup(lang string, key Key) (string, bool) {
	table, ok := t.tables[lang]
	if !ok {
		return "", false
	}
	text, ok := table[key]
	return text, ok
}

// normalizeLang reduces a locale tag like "en-US" to its base language.
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
