package conversation

// DefaultTitle is used for new conversations and empty first messages.
const DefaultTitle = "New Chat"

// titleMaxRunes is the truncation point for derived titles.
const titleMaxRunes = 50

// DeriveTitle builds a conversation title from its first user message:
// the first 50 characters of the content, with an ellipsis marker
// appended when the content is longer. Empty content yields DefaultTitle.
//
// Truncation counts runes so multi-byte content is never split
// mid-character.
func DeriveTitle(content string) string {
	if content == "" {
		return DefaultTitle
	}
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
