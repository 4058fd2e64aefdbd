package coach

import (
	"context"
	"fmt"
	"strings"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/session"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// RunMorningSession drafts post options on today's theme and publishes the
// one the operator picks. Timeout or skip publishes nothing. Generation and
// publish failures are reported into the card thread and end the session
// without failing the scheduled task.
func (c *Coach) RunMorningSession(ctx context.Context) error {
	theme, err := c.learn.PickTheme(ctx)
	if err != nil {
		return err
	}
	c.log.Infow("Morning session starting", logger.FieldTheme, theme)

	confirm := &session.Card{
		Index: 1,
		Total: 2,
		Title: Tag + " Morning session",
		Body:  fmt.Sprintf("Draft suggestions on %q? ✅ to generate, ❌ to skip today.", theme),
	}
	ok, err := c.engine.RunConfirm(ctx, confirm)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Infow("Morning session declined")
		return nil
	}

	if !c.allowBudget(ctx, confirm.MessageTS) {
		return nil
	}

	completion, err := c.gen.Complete(ctx, anthropic.TaskSuggest, morningPrompt(theme, c.timeNow()))
	if err != nil {
		c.log.Errorw("Suggestion generation failed", logger.FieldError, err)
		c.engine.ReportError(ctx, confirm.MessageTS, err)
		return nil
	}

	options := extractOptions(completion.Text, 3)
	if len(options) == 0 {
		c.log.Warnw("Completion contained no options", "model", completion.Model)
		return nil
	}

	card := &session.Card{
		Index: 2,
		Total: 2,
		Title: fmt.Sprintf("%s for %s", suggestionCardTitle, c.timeNow().Format("Jan 2")),
		Body:  renderOptions(theme, options),
	}

	choice, err := c.engine.RunPick(ctx, card)
	if err != nil {
		return err
	}
	if choice == 0 || choice > len(options) {
		c.log.Infow("Morning session ended without a pick")
		return nil
	}

	text := social.Truncate(options[choice-1])
	postID, err := c.publisher.CreatePost(ctx, text)
	if err != nil {
		c.engine.ReportError(ctx, card.MessageTS, err)
		return nil
	}

	if err := c.recordPublished(ctx, journal.KindPost, postID, "", "", theme, text); err != nil {
		c.log.Errorw("Could not journal published post", logger.FieldError, err)
	}
	if err := c.learn.RecordSelection(ctx, "morning", choice, theme, postID); err != nil {
		c.log.Errorw("Could not record selection", logger.FieldError, err)
	}
	if err := c.engine.MarkProcessed(ctx, card.MessageTS); err != nil {
		c.log.Warnw("Could not mark card processed", logger.FieldError, err)
	}
	if _, err := c.engine.Say(ctx, fmt.Sprintf("Posted option %d (id %s).", choice, postID), card.MessageTS); err != nil {
		c.log.Warnw("Could not confirm publish", logger.FieldError, err)
	}
	c.log.Infow("Morning post published", logger.FieldPostID, postID, logger.FieldTheme, theme)
	return nil
}

func renderOptions(theme string, options []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\n\n", theme)
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, opt)
	}
	b.WriteString("React 1️⃣/2️⃣/3️⃣ to post, 👎 to skip.")
	return strings.TrimRight(b.String(), "\n")
}

// recordPublished journals a published item and feeds its text features
// into the reinforcement store's pick counts.
func (c *Coach) recordPublished(ctx context.Context, kind journal.Kind, contentID, inReplyTo, targetHandle, theme, text string) error {
	event, err := c.journal.Record(ctx, kind, contentID, inReplyTo, targetHandle, theme, text, c.timeNow())
	if err != nil {
		return err
	}
	return c.learn.RecordPicks(ctx, event.Features)
}
