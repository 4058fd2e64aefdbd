package coach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/session"
	"github.com/teranos/spark/logger"
)

// RunDailySummary posts an end-of-day recap and folds the day's published
// posts back into the theme weights
func (c *Coach) RunDailySummary(ctx context.Context) error {
	since := c.timeNow().Add(-24 * time.Hour)

	var offered, handled int
	history, err := c.messenger.History(ctx, c.config().Slack.ChannelID, since, 200)
	if err != nil {
		c.log.Warnw("Could not read channel history for summary", logger.FieldError, err)
	}
	for _, msg := range history {
		if isCardOffer(msg.Text) {
			offered++
		}
		if msg.ReactionCounts()[session.ProcessedMarker] > 0 {
			handled++
		}
	}

	events, err := c.journal.PostsSince(ctx, since, "")
	if err != nil {
		return err
	}
	var posts, replies int
	for _, ev := range events {
		if ev.Kind == journal.KindReply {
			replies++
		} else {
			posts++
		}
	}

	line := fmt.Sprintf("%s Daily summary: %d posts and %d replies published, %d cards offered, %d handled.",
		Tag, posts, replies, offered, handled)

	if len(events) > 0 {
		best, credit, err := c.learn.UpdateThemeWeights(ctx, events)
		if err != nil {
			c.log.Errorw("Theme weight update failed", logger.FieldError, err)
		} else if best != "" {
			line += fmt.Sprintf(" Theme boost: %s (credit %.1f).", best, credit)
		}
	}

	if _, err := c.engine.Say(ctx, line, ""); err != nil {
		return err
	}
	c.log.Infow("Daily summary posted", logger.FieldCount, posts+replies)
	return nil
}

// RunWeeklyBrief posts a short generated review of the week. When the
// budget is exhausted or generation fails the stats still go out as a
// plain fallback.
func (c *Coach) RunWeeklyBrief(ctx context.Context) error {
	since := c.timeNow().Add(-7 * 24 * time.Hour)
	events, err := c.journal.PostsSince(ctx, since, "")
	if err != nil {
		return err
	}
	var posts, replies int
	for _, ev := range events {
		if ev.Kind == journal.KindReply {
			replies++
		} else {
			posts++
		}
	}

	best := c.bestTheme(ctx)
	body := fmt.Sprintf("%d posts, %d replies. Best theme: %s.", posts, replies, best)

	if ok, err := c.ledger.Allow(ctx, c.config().Coach.CostPerDraftUSD); err == nil && ok {
		completion, err := c.gen.Complete(ctx, anthropic.TaskWeekly, weeklyPrompt(posts, replies, best))
		if err != nil {
			c.log.Errorw("Weekly brief generation failed", logger.FieldError, err)
		} else {
			body = strings.TrimSpace(completion.Text)
		}
	} else if err != nil {
		c.log.Errorw("Budget check failed", logger.FieldError, err)
	}

	if _, err := c.engine.Say(ctx, Tag+" Weekly brief\n\n"+body, ""); err != nil {
		return err
	}
	c.log.Infow("Weekly brief posted", logger.FieldCount, posts+replies)
	return nil
}

// isCardOffer reports whether a channel message is an approval card carrying
// publishable content. Alerts, budget notices, and confirmations share the
// tag but are not offers.
func isCardOffer(text string) bool {
	return strings.Contains(text, suggestionCardTitle) ||
		strings.Contains(text, afternoonCardTitle)
}

// bestTheme returns the configured theme with the highest stored weight,
// ties broken by configured order
func (c *Coach) bestTheme(ctx context.Context) string {
	weights, err := c.learn.ThemeWeights(ctx)
	if err != nil {
		c.log.Warnw("Could not load theme weights", logger.FieldError, err)
		if len(c.config().Coach.Themes) > 0 {
			return c.config().Coach.Themes[0]
		}
		return ""
	}
	best, bestWeight := "", -1
	for _, theme := range c.config().Coach.Themes {
		if w := weights[theme]; w > bestWeight {
			best, bestWeight = theme, w
		}
	}
	return best
}
