package coach

import (
	"context"
	"strings"
	"unicode"

	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// voiceSampleSize is how many recent posts feed each handle's pattern
const voiceSampleSize = 20

// casualOpeners mark a post that starts mid-thought rather than with a
// composed hook
var casualOpeners = []string{"just ", "honestly ", "tbh ", "shipped ", "so "}

// VoicePattern summarizes the writing style of one account's recent posts.
// Percentages are fractions of the sampled posts, 0 to 1.
type VoicePattern struct {
	Handle          string
	Posts           int
	AvgLength       float64
	AvgLines        float64
	LowercaseStarts float64
	EmojiRate       float64
	QuestionRate    float64
	CasualStarts    float64
}

// RunVoiceAnalysis samples recent posts for every watched handle and logs
// a style report per account. Invoked manually, not scheduled:
// spark task --name voice.
func (c *Coach) RunVoiceAnalysis(ctx context.Context) error {
	if c.reader == nil {
		return errors.New("voice analysis needs a social reader")
	}

	creators := c.config().Creators
	var handles []string
	handles = append(handles, creators.Tier1...)
	handles = append(handles, creators.Tier2...)
	handles = append(handles, creators.Tier3...)
	if len(handles) == 0 {
		c.log.Warnw("Voice analysis has no watched handles")
		return nil
	}

	accounts, err := c.reader.ResolveHandles(ctx, handles)
	if err != nil {
		return errors.Wrap(err, "resolving watched handles")
	}

	analyzed := 0
	for _, handle := range handles {
		acct, ok := accounts[strings.ToLower(handle)]
		if !ok {
			c.log.Debugw("Watched handle did not resolve", "handle", handle)
			continue
		}
		posts, err := c.reader.RecentPosts(ctx, acct.ID, voiceSampleSize)
		if err != nil {
			c.log.Warnw("Failed to fetch recent posts, skipping account",
				"handle", handle,
				logger.FieldError, err)
			continue
		}
		if len(posts) == 0 {
			continue
		}

		pattern := AnalyzeVoice(handle, posts)
		analyzed++
		c.log.Infow("Voice pattern",
			"handle", pattern.Handle,
			"posts", pattern.Posts,
			"avg_length", pattern.AvgLength,
			"avg_lines", pattern.AvgLines,
			"lowercase_starts", pattern.LowercaseStarts,
			"emoji_rate", pattern.EmojiRate,
			"question_rate", pattern.QuestionRate,
			"casual_starts", pattern.CasualStarts)
	}

	c.log.Infow("Voice analysis complete", "accounts", analyzed)
	return nil
}

// AnalyzeVoice computes the style pattern of one account from its posts
func AnalyzeVoice(handle string, posts []social.Post) VoicePattern {
	p := VoicePattern{Handle: handle, Posts: len(posts)}

	var length, lines, lower, emoji, question, casual int
	for _, post := range posts {
		feats := journal.ExtractFeatures(post.Text)
		length += feats.Length
		lines += feats.LineCount
		if feats.EmojiCount > 0 {
			emoji++
		}
		if feats.AsksQuestion {
			question++
		}
		if startsLowercase(post.Text) {
			lower++
		}
		if startsCasually(post.Text) {
			casual++
		}
	}

	n := float64(len(posts))
	p.AvgLength = float64(length) / n
	p.AvgLines = float64(lines) / n
	p.LowercaseStarts = float64(lower) / n
	p.EmojiRate = float64(emoji) / n
	p.QuestionRate = float64(question) / n
	p.CasualStarts = float64(casual) / n
	return p
}

func startsLowercase(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
		if !unicode.IsSpace(r) {
			// opens with a digit, emoji, or punctuation
			return false
		}
	}
	return false
}

func startsCasually(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, opener := range casualOpeners {
		if strings.HasPrefix(lowered, opener) {
			return true
		}
	}
	return false
}
