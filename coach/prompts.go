package coach

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

func morningPrompt(theme string, now time.Time) string {
	return fmt.Sprintf(`You are a writing coach for a solo founder building developer tools in public.
Today is %s. Today's theme is %q.

Draft 3 distinct post options on that theme, each under 280 characters.
Write in a direct, conversational voice. No hashtags, no marketing speak.

Format each option as a bullet starting with "- ".`,
		now.Format("Monday, January 2"), theme)
}

func afternoonPrompt() string {
	return `You are a writing coach for a solo founder building developer tools in public.

Draft one build-in-public update for this afternoon: something shipped today,
a problem hit and how it was solved, or an honest progress note. Under 280
characters, direct voice, no hashtags. Reply with the post text only.`
}

func replyPrompt(handle, text string, spicy bool) string {
	tone := "Friendly and useful. Add a concrete detail or question, never generic praise."
	if spicy {
		tone = "Confident and a little contrarian. Take a clear position, stay respectful."
	}
	return fmt.Sprintf(`You are drafting a reply to this post by @%s:

%s

Tone: %s
Under 280 characters. Reply with the reply text only.`, handle, text, tone)
}

func weeklyPrompt(posts, replies int, bestTheme string) string {
	return fmt.Sprintf(`You are a writing coach reviewing a founder's week on social media.

This week: %d posts published, %d replies sent. Best performing theme: %q.

Write a short brief (under 600 characters) with one observation about what
worked and one concrete suggestion for next week. Plain text, no headers.`,
		posts, replies, bestTheme)
}

// extractOptions pulls bulleted or numbered post options out of a model
// completion. Lines that aren't list items are treated as commentary and
// dropped. At most max options are returned.
func extractOptions(completion string, max int) []string {
	var options []string
	for _, line := range strings.Split(completion, "\n") {
		line = strings.TrimSpace(line)
		text, ok := stripListMarker(line)
		if !ok || text == "" {
			continue
		}
		options = append(options, strings.Trim(text, `"`))
		if len(options) >= max {
			break
		}
	}
	return options
}

func stripListMarker(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if rest, found := strings.CutPrefix(line, prefix); found {
			return strings.TrimSpace(rest), true
		}
	}
	// numbered lists: "1. text" or "1) text"
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}
