// Package guard scans the child's latest message for prompt injection.
//
// The action is configurable via gateway.injection_action:
//   - "log":   info-level logging (quiet)
//   - "warn":  warning-level logging (default)
//   - "block": reject the request with 400
//   - "off":   disable scanning entirely
package guard

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
)

// Action decides what happens when a pattern matches.
type Action string

const (
	ActionOff   Action = "off"
	ActionLog   Action = "log"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

// ParseAction maps a config value to an Action. Empty means warn.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "":
		return ActionWarn, nil
	case ActionOff, ActionLog, ActionWarn, ActionBlock:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown injection action %q (want off, log, warn or block)", s)
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

var defaultPatterns = []pattern{
	{"ignore_instructions", regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`)},
	{"role_override", regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are)\s+`)},
	{"system_tags", regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`)},
	{"instruction_injection", regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`)},
	{"null_bytes", regexp.MustCompile(`\x00`)},
	{"delimiter_escape", regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt|context)>)`)},
}

// Guard is safe for concurrent use. The action can be swapped at runtime.
type Guard struct {
	patterns []pattern
	action   atomic.Value // Action
}

// New creates a Guard with the built-in patterns.
func New(action Action) *Guard {
	g := &Guard{patterns: defaultPatterns}
	g.SetAction(action)
	return g
}

// SetAction replaces the current action.
func (g *Guard) SetAction(a Action) { g.action.Store(a) }

// Action returns the current action.
func (g *Guard) Action() Action { return g.action.Load().(Action) }

// Scan returns the names of matched patterns (nil = no matches).
// "imagine you are ..." is ordinary story talk and is not a pattern.
func (g *Guard) Scan(message string) []string {
	if message == "" {
		return nil
	}
	var matches []string
	for _, p := range g.patterns {
		if p.re.MatchString(message) {
			matches = append(matches, p.name)
		}
	}
	return matches
}

// Check scans message under the current action and reports whether the
// request must be rejected.
func (g *Guard) Check(user, message string) (blocked bool) {
	action := g.Action()
	if action == ActionOff {
		return false
	}
	matches := g.Scan(message)
	if len(matches) == 0 {
		return false
	}
	switch action {
	case ActionLog:
		slog.Info("security.injection_detected", "user", user, "patterns", matches)
	case ActionBlock:
		slog.Warn("security.injection_blocked", "user", user, "patterns", matches)
		return true
	default:
		slog.Warn("security.injection_detected", "user", user, "patterns", matches)
	}
	return false
}

// PatternNames returns the names of all configured patterns.
func (g *Guard) PatternNames() []string {
	names := make([]string, len(g.patterns))
	for i, p := range g.patterns {
		names[i] = p.name
	}
	return names
}
