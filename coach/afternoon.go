package coach

import (
	"context"
	"fmt"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/session"
	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// RunAfternoonSession offers a build-in-public draft for approval. The
// operator can publish it, edit it by replying in the thread, or ask for a
// regeneration. Each generated draft charges the ledger once.
func (c *Coach) RunAfternoonSession(ctx context.Context) error {
	draft, ok := c.generateDraft(ctx, "")
	if !ok {
		return nil
	}

	card := &session.Card{
		Index: 1,
		Total: 1,
		Title: afternoonCardTitle,
	}

	result, err := c.engine.RunDraft(ctx, card, draft, func(ctx context.Context) (string, error) {
		text, ok := c.generateDraft(ctx, card.MessageTS)
		if !ok {
			return "", errors.New("draft regeneration unavailable")
		}
		return text, nil
	})
	if err != nil {
		return err
	}
	if result.Action != session.SignalPost {
		c.log.Infow("Afternoon session ended without publishing", logger.FieldSignal, string(result.Action))
		return nil
	}

	text := social.Truncate(result.Text)
	postID, err := c.publisher.CreatePost(ctx, text)
	if err != nil {
		c.engine.ReportError(ctx, card.MessageTS, err)
		return nil
	}

	if err := c.recordPublished(ctx, journal.KindPost, postID, "", "", "build_in_public", text); err != nil {
		c.log.Errorw("Could not journal published post", logger.FieldError, err)
	}
	if err := c.engine.MarkProcessed(ctx, card.MessageTS); err != nil {
		c.log.Warnw("Could not mark card processed", logger.FieldError, err)
	}
	if _, err := c.engine.Say(ctx, fmt.Sprintf("Posted (id %s).", postID), card.MessageTS); err != nil {
		c.log.Warnw("Could not confirm publish", logger.FieldError, err)
	}
	c.log.Infow("Afternoon post published", logger.FieldPostID, postID)
	return nil
}

// generateDraft charges the ledger and produces one draft. The boolean is
// false when the budget refused the charge or generation failed; both cases
// have already been reported.
func (c *Coach) generateDraft(ctx context.Context, threadTS string) (string, bool) {
	if !c.allowBudget(ctx, threadTS) {
		return "", false
	}
	completion, err := c.gen.Complete(ctx, anthropic.TaskSuggest, afternoonPrompt())
	if err != nil {
		c.log.Errorw("Draft generation failed", logger.FieldError, err)
		return "", false
	}
	return completion.Text, true
}
