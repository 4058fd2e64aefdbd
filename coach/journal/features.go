package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// TextFeatures are the shape signals recorded for every published text.
// They feed the reinforcement loop, which learns which shapes succeed.
type TextFeatures struct {
	Length        int
	HasNumbers    bool
	AsksQuestion  bool
	EmojiCount    int
	LineCount     int
	PersonalStory bool
}

var (
	digitRe = regexp.MustCompile(`\d`)
	emojiRe = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}]`)
)

// firstPersonMarkers suggest the text tells a personal story rather than
// stating facts or asking the audience something.
var firstPersonMarkers = []string{
	"i ", "i'", "my ", "me ", "we ", "our ",
}

// ExtractFeatures computes the recorded shape signals for a text
func ExtractFeatures(text string) TextFeatures {
	return TextFeatures{
		Length:        len([]rune(text)),
		HasNumbers:    digitRe.MatchString(text),
		AsksQuestion:  strings.Contains(text, "?"),
		EmojiCount:    len(emojiRe.FindAllString(text, -1)),
		LineCount:     len(strings.Split(text, "\n")),
		PersonalStory: isPersonalStory(text),
	}
}

// isPersonalStory is a heuristic: past-tense first-person openings without a
// question read as story-telling.
func isPersonalStory(text string) bool {
	low := " " + strings.ToLower(text)
	if strings.Contains(low, "?") {
		return false
	}
	for _, marker := range firstPersonMarkers {
		if strings.Contains(low, " "+marker) {
			return true
		}
	}
	return false
}

// HashText returns the hex sha256 of the text. Stored instead of the raw
// text so the journal never retains published content verbatim.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
