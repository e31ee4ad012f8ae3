// Package story holds the story reference a session can be tied to.
package story

// DefaultSessionTitle is used when a session is created without a story.
const DefaultSessionTitle = "New conversation"

// Story is a folktale a conversation reimagines.
type Story struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// SessionTitle derives a session title from a story, falling back to the
// default placeholder when no story is given.
func SessionTitle(st *Story) string {
	if st == nil || st.Title == "" {
		return DefaultSessionTitle
	}
	return st.Title
}
