package coach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/scout"
	"github.com/teranos/spark/coach/session"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// replyDraft is a reply draft posted into the shortlist thread, keyed by its
// shortlist rank while the operator works through it.
type replyDraft struct {
	opp  scout.Opportunity
	ts   string
	text string
	sent bool
}

// RunOpportunityScan posts urgent alerts and the ranked shortlist, then
// drafts replies for the ranks the operator selects with a "create: 1,4,6"
// thread reply. Each draft is published on a 👍 reaction or a "post N"
// command, optionally revised first with "edit N: <text>". A run with no
// selection before the card timeout simply ends; nothing is published.
func (c *Coach) RunOpportunityScan(ctx context.Context) error {
	result, err := c.scanner.Scan(ctx, c.config().Creators)
	if err != nil {
		return err
	}

	for _, alert := range result.Urgent {
		if _, err := c.engine.Say(ctx, Tag+" URGENT: "+alert, ""); err != nil {
			c.log.Warnw("Could not post urgent alert", logger.FieldError, err)
		}
	}

	if len(result.Shortlist) == 0 {
		c.log.Infow("Scan produced no shortlist")
		return nil
	}

	headerTS, err := c.engine.Say(ctx, fmt.Sprintf(
		"%s %d opportunities. Reply \"create: 1,4,6\" in this thread to draft replies (add \"spicy\" for a sharper tone).",
		Tag, len(result.Shortlist)), "")
	if err != nil {
		return err
	}
	for _, opp := range result.Shortlist {
		if _, err := c.engine.Say(ctx, renderOpportunity(opp), headerTS); err != nil {
			c.log.Warnw("Could not post shortlist entry", logger.FieldError, err)
		}
	}

	selection, ok := c.awaitSelection(ctx, headerTS)
	if !ok {
		c.log.Infow("Scan ended without a selection", logger.FieldThreadTS, headerTS)
		return nil
	}

	drafts := c.draftReplies(ctx, headerTS, result.Shortlist, selection)
	if len(drafts) == 0 {
		return nil
	}
	c.reviewDrafts(ctx, headerTS, drafts)
	return nil
}

func renderOpportunity(opp scout.Opportunity) string {
	return fmt.Sprintf("%d. @%s (T%d, score %d, id %s)\n%s\n%s",
		opp.Rank, opp.Handle, opp.Tier, opp.Score, opp.ContentID, opp.Summary, opp.Why)
}

func (c *Coach) pollInterval() time.Duration {
	if c.config().Coach.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.config().Coach.PollIntervalSeconds) * time.Second
}

// awaitSelection polls the shortlist thread for the first create command
// until the card timeout elapses
func (c *Coach) awaitSelection(ctx context.Context, headerTS string) (*session.Selection, bool) {
	poll := c.pollInterval()
	deadline := c.timeNow().Add(time.Duration(c.config().Coach.CardTimeoutMinutes) * time.Minute)

	for {
		replies, err := c.messenger.Replies(ctx, c.config().Slack.ChannelID, headerTS, 100)
		if err != nil {
			c.log.Debugw("Could not read shortlist thread", logger.FieldError, err)
		}
		for _, msg := range replies {
			cmd, err := session.ParseCommand(msg.Text)
			if err != nil || cmd.Verb != session.VerbCreate {
				continue
			}
			sel, err := session.ParseSelection(cmd)
			if err != nil {
				c.log.Debugw("Unparseable selection", logger.FieldError, err)
				continue
			}
			return sel, true
		}

		if c.timeNow().After(deadline) {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(poll):
		}
	}
}

// draftReplies charges the ledger and generates a reply draft per selected
// rank, posting each into the shortlist thread. A refused budget charge stops
// further drafting; the ledger method has already posted the pause notice.
func (c *Coach) draftReplies(ctx context.Context, headerTS string, shortlist []scout.Opportunity, sel *session.Selection) map[int]*replyDraft {
	drafts := make(map[int]*replyDraft)
	for _, rank := range sel.Indices {
		if rank < 1 || rank > len(shortlist) {
			c.log.Debugw("Selection rank out of range", logger.FieldCount, rank)
			continue
		}
		opp := shortlist[rank-1]

		if !c.allowBudget(ctx, headerTS) {
			break
		}

		target, err := c.publisher.PostText(ctx, opp.ContentID)
		if err != nil {
			c.log.Warnw("Could not fetch target post, drafting from summary",
				logger.FieldPostID, opp.ContentID, logger.FieldError, err)
			target = opp.Summary
		}

		completion, err := c.gen.Complete(ctx, anthropic.TaskReply, replyPrompt(opp.Handle, target, sel.Spicy))
		if err != nil {
			c.engine.ReportError(ctx, headerTS, err)
			continue
		}
		text := strings.TrimSpace(completion.Text)

		ts, err := c.engine.Say(ctx, fmt.Sprintf(
			"Draft %d → @%s:\n\n%s\n\n👍 or \"post %d\" to send, \"edit %d: <text>\" to revise.",
			rank, opp.Handle, text, rank, rank), headerTS)
		if err != nil {
			c.log.Errorw("Could not post reply draft", logger.FieldError, err)
			continue
		}
		drafts[rank] = &replyDraft{opp: opp, ts: ts, text: text}
	}
	return drafts
}

// reviewDrafts polls the thread and the draft messages for post/edit
// commands and 👍 reactions until every draft is resolved or the card
// timeout elapses
func (c *Coach) reviewDrafts(ctx context.Context, headerTS string, drafts map[int]*replyDraft) {
	poll := c.pollInterval()
	deadline := c.timeNow().Add(time.Duration(c.config().Coach.CardTimeoutMinutes) * time.Minute)

	for {
		c.applyThreadCommands(ctx, headerTS, drafts)
		c.applyDraftReactions(ctx, headerTS, drafts)

		if allSent(drafts) || c.timeNow().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}

func allSent(drafts map[int]*replyDraft) bool {
	for _, d := range drafts {
		if !d.sent {
			return false
		}
	}
	return true
}

func (c *Coach) applyThreadCommands(ctx context.Context, headerTS string, drafts map[int]*replyDraft) {
	replies, err := c.messenger.Replies(ctx, c.config().Slack.ChannelID, headerTS, 100)
	if err != nil {
		c.log.Debugw("Could not read shortlist thread", logger.FieldError, err)
		return
	}
	for _, msg := range replies {
		cmd, err := session.ParseCommand(msg.Text)
		if err != nil {
			continue
		}
		draft, known := drafts[cmd.Index]
		if !known || draft.sent {
			continue
		}
		switch cmd.Verb {
		case session.VerbEdit:
			draft.text = cmd.Payload
		case session.VerbPost:
			c.publishReply(ctx, headerTS, cmd.Index, draft)
		}
	}
}

func (c *Coach) applyDraftReactions(ctx context.Context, headerTS string, drafts map[int]*replyDraft) {
	for rank, draft := range drafts {
		if draft.sent {
			continue
		}
		counts, err := c.messenger.Reactions(ctx, c.config().Slack.ChannelID, draft.ts)
		if err != nil {
			c.log.Debugw("Could not read draft reactions",
				logger.FieldCardTS, draft.ts, logger.FieldError, err)
			continue
		}
		if counts[session.ProcessedMarker] > 0 {
			// handled by an earlier run
			draft.sent = true
			continue
		}
		for _, alias := range session.PostAliases {
			if counts[alias] > 0 {
				c.publishReply(ctx, headerTS, rank, draft)
				break
			}
		}
	}
}

func (c *Coach) publishReply(ctx context.Context, headerTS string, rank int, draft *replyDraft) {
	text := social.Truncate(draft.text)
	replyID, err := c.publisher.CreateReply(ctx, draft.opp.ContentID, text)
	if err != nil {
		c.engine.ReportError(ctx, headerTS, err)
		return
	}
	draft.sent = true

	if err := c.recordPublished(ctx, journal.KindReply, replyID, draft.opp.ContentID, draft.opp.Handle, "", text); err != nil {
		c.log.Errorw("Could not journal published reply", logger.FieldError, err)
	}
	if err := c.engine.MarkProcessed(ctx, draft.ts); err != nil {
		c.log.Warnw("Could not mark draft processed", logger.FieldError, err)
	}
	if _, err := c.engine.Say(ctx, fmt.Sprintf("Sent reply %d to @%s (id %s).", rank, draft.opp.Handle, replyID), headerTS); err != nil {
		c.log.Warnw("Could not confirm reply", logger.FieldError, err)
	}
	c.log.Infow("Reply published",
		logger.FieldPostID, replyID,
		"target", draft.opp.ContentID)
}
