package completion

import "strings"

// RedirectReply is returned when a message fails the word screen; the
// provider is never called for such messages.
const RedirectReply = "Could we try saying that a kinder way? What other ideas do you have?"

// defaultBannedWords is the built-in screen for a child-facing client.
var defaultBannedWords = []string{
	"kill", "hit", "violence", "stupid", "idiot", "hate",
}

// Moderator screens user messages before they reach the provider.
type Moderator struct {
	bannedWords []string
}

// NewModerator creates a moderator. Extra words extend the built-in list.
func NewModerator(extraWords ...string) *Moderator {
	words := make([]string, 0, len(defaultBannedWords)+len(extraWords))
	words = append(words, defaultBannedWords...)
	words = append(words, extraWords...)
	return &Moderator{bannedWords: words}
}

// Flagged reports whether the message contains a banned word.
func (m *Moderator) Flagged(message string) bool {
	lowered := strings.ToLower(message)
	for _, word := range m.bannedWords {
		if word != "" && strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
