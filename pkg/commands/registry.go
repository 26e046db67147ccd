package commands

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// Registry maps aliases to command definitions. Registration happens at
// startup only; Seal freezes the registry, after which resolution needs
// no locking.
type Registry struct {
	prefix  string
	aliases map[string]*Definition
	sealed  bool
	mu      sync.Mutex
}

// NewRegistry creates a new command registry with the given prefix.
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = "!"
	}
	return &Registry{
		prefix:  prefix,
		aliases: make(map[string]*Definition),
	}
}

// Prefix returns the configured command prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Register registers a command definition under its name and aliases.
// A duplicate alias across any two commands is a startup error.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("command cannot be nil")
	}
	if def.Name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("command %s has no handler", def.Name)
	}
	if def.Trusted && def.Role < RoleBotModerator {
		return fmt.Errorf("trusted command %s must require at least bot_moderator", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry is sealed, cannot register %s", def.Name)
	}

	tokens := make([]string, 0, len(def.Aliases)+1)
	tokens = append(tokens, def.Name)
	tokens = append(tokens, def.Aliases...)

	for _, token := range tokens {
		alias := strings.ToLower(strings.TrimSpace(token))
		if alias == "" {
			return fmt.Errorf("command %s has an empty alias", def.Name)
		}
		if existing, exists := r.aliases[alias]; exists {
			return fmt.Errorf("alias %q of command %s already registered by %s",
				alias, def.Name, existing.Name)
		}
		r.aliases[alias] = def
	}

	return nil
}

// Seal freezes the registry. Resolution after Seal is lock-free.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve parses raw message text and looks up the command it invokes.
// Returns the definition and the raw argument string, or ok=false when
// the text is not a command invocation (no prefix or unknown alias).
// A miss is not an error; callers silently ignore it.
func (r *Registry) Resolve(rawText string) (*Definition, string, bool) {
	text := strings.TrimSpace(rawText)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, "", false
	}

	text = strings.TrimPrefix(text, r.prefix)
	name := text
	rawArgs := ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name = text[:i]
		rawArgs = strings.TrimSpace(text[i:])
	}

	alias := strings.ToLower(name)
	if alias == "" {
		return nil, "", false
	}

	def, exists := r.aliases[alias]
	if !exists {
		return nil, "", false
	}

	return def, rawArgs, true
}

// Get retrieves a command definition by name or alias.
func (r *Registry) Get(name string) (*Definition, bool) {
	def, exists := r.aliases[strings.ToLower(strings.TrimSpace(name))]
	return def, exists
}

// List returns all registered command definitions, deduplicated.
func (r *Registry) List() []*Definition {
	seen := make(map[*Definition]struct{}, len(r.aliases))
	defs := make([]*Definition, 0, len(r.aliases))
	for _, def := range r.aliases {
		if _, dup := seen[def]; dup {
			continue
		}
		seen[def] = struct{}{}
		defs = append(defs, def)
	}
	return defs
}

// SplitArgs splits a raw argument string on whitespace runs.
func SplitArgs(rawArgs string) []string {
	return strings.Fields(rawArgs)
}
