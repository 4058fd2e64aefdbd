package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/slack"
)

// Transport is the messaging surface the engine needs. *slack.Client
// satisfies it.
type Transport interface {
	PostMessage(ctx context.Context, channel, text, threadTS string) (string, error)
	AddReaction(ctx context.Context, channel, ts, name string) error
	Reactions(ctx context.Context, channel, ts string) (map[string]int, error)
	Replies(ctx context.Context, channel, threadTS string, limit int) ([]slack.Message, error)
}

// maxDraftCycles bounds the edit/regenerate loop of a draft stage
const maxDraftCycles = 5

// Engine posts action cards and resolves operator signals
type Engine struct {
	transport    Transport
	channel      string
	pollInterval time.Duration
	cardTimeout  time.Duration
	log          *zap.SugaredLogger
	timeNow      func() time.Time
}

// Config holds engine timing parameters
type Config struct {
	Channel      string
	PollInterval time.Duration // reaction poll cadence (default: 5s)
	CardTimeout  time.Duration // per-card approval window (default: 30m)
}

// NewEngine creates a session engine over a messaging transport
func NewEngine(transport Transport, cfg Config, log *zap.SugaredLogger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.CardTimeout <= 0 {
		cfg.CardTimeout = 30 * time.Minute
	}
	return &Engine{
		transport:    transport,
		channel:      cfg.Channel,
		pollInterval: cfg.PollInterval,
		cardTimeout:  cfg.CardTimeout,
		log:          logger.AddCoachSymbol(log),
		timeNow:      time.Now,
	}
}

// PostCard renders and posts a card, then primes its signal reactions so
// the operator can click instead of typing. Priming failures are logged and
// tolerated; the reactions remain clickable by the operator directly.
func (e *Engine) PostCard(ctx context.Context, card *Card) error {
	text := card.Title
	if card.Total > 1 {
		text = fmt.Sprintf("[%d/%d] %s", card.Index, card.Total, card.Title)
	}
	if card.Body != "" {
		text += "\n\n" + card.Body
	}

	ts, err := e.transport.PostMessage(ctx, e.channel, text, "")
	if err != nil {
		return errors.Wrap(err, "failed to post card")
	}
	card.MessageTS = ts
	card.PostedAt = e.timeNow()

	for _, spec := range card.Signals {
		if err := e.transport.AddReaction(ctx, e.channel, ts, spec.Aliases[0]); err != nil {
			e.log.Warnw("Could not prime card reaction",
				logger.FieldCardTS, ts,
				"reaction", spec.Aliases[0],
				logger.FieldError, err)
		}
	}

	e.log.Infow("Card posted",
		logger.FieldCardTS, ts,
		"title", card.Title,
		logger.FieldStage, fmt.Sprintf("%d/%d", card.Index, card.Total))
	return nil
}

// AwaitSignal polls the card's reactions until a declared signal is
// expressed or the card timeout elapses. A primed reaction counts as
// expressed once its count exceeds the single self-reaction; an unprimed
// alias counts from one. Timeout resolves to the card's default signal.
func (e *Engine) AwaitSignal(ctx context.Context, card *Card) (Signal, error) {
	if card.MessageTS == "" {
		return "", errors.New("card has not been posted")
	}

	deadline := card.PostedAt.Add(e.cardTimeout)
	for {
		if !e.timeNow().Before(deadline) {
			e.log.Infow("Card timed out",
				logger.FieldCardTS, card.MessageTS,
				logger.FieldSignal, string(card.Default))
			return card.Default, nil
		}

		counts, err := e.transport.Reactions(ctx, e.channel, card.MessageTS)
		if err != nil {
			// transient: treat as no data this cycle
			e.log.Debugw("Reaction poll failed",
				logger.FieldCardTS, card.MessageTS,
				logger.FieldError, err)
		} else {
			for _, spec := range card.Signals {
				for i, alias := range spec.Aliases {
					threshold := 0
					if i == 0 {
						threshold = 1 // primed by us
					}
					if counts[alias] > threshold {
						e.log.Infow("Signal resolved",
							logger.FieldCardTS, card.MessageTS,
							logger.FieldSignal, string(spec.Signal))
						return spec.Signal, nil
					}
				}
			}
		}

		select {
		case <-ctx.Done():
			return card.Default, ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
}

// RunConfirm posts a yes/no card and reports whether the operator approved.
// Timeout counts as no.
func (e *Engine) RunConfirm(ctx context.Context, card *Card) (bool, error) {
	card.Signals = ConfirmSignals()
	card.Default = SignalNo
	if err := e.PostCard(ctx, card); err != nil {
		return false, err
	}
	sig, err := e.AwaitSignal(ctx, card)
	if err != nil {
		return false, err
	}
	return sig == SignalYes, nil
}

// RunPick posts a three-option card and returns the chosen option (1-3),
// or 0 when the operator skips or the card times out.
func (e *Engine) RunPick(ctx context.Context, card *Card) (int, error) {
	card.Signals = PickSignals()
	card.Default = SignalSkip
	if err := e.PostCard(ctx, card); err != nil {
		return 0, err
	}

	sig, err := e.AwaitSignal(ctx, card)
	if err != nil {
		return 0, err
	}

	switch sig {
	case SignalOption1:
		return 1, nil
	case SignalOption2:
		return 2, nil
	case SignalOption3:
		return 3, nil
	default:
		return 0, nil
	}
}

// DraftResult is the outcome of a draft review stage
type DraftResult struct {
	Action Signal // SignalPost or SignalSkip
	Text   string // final text when Action is SignalPost
}

// RunDraft runs the four-way draft review loop: post publishes the current
// draft, edit replaces it from the first matching threaded reply and
// re-offers the choice, regenerate re-invokes the generator and re-offers,
// skip or timeout abandons the draft. The loop is bounded so a card is
// never re-posted more than a handful of times.
func (e *Engine) RunDraft(ctx context.Context, card *Card, draft string, regenerate func(context.Context) (string, error)) (*DraftResult, error) {
	current := draft

	for cycle := 0; cycle < maxDraftCycles; cycle++ {
		stage := &Card{
			Index: card.Index,
			Total: card.Total,
			Title: card.Title,
			Body:  current + "\n\nReact: 👍 post · ✏️ edit in thread · 🔄 regenerate · 👎 skip",
		}
		stage.Signals = DraftSignals()
		stage.Default = SignalSkip

		if err := e.PostCard(ctx, stage); err != nil {
			return nil, err
		}
		// callers thread confirmations and markers under the latest stage
		card.MessageTS = stage.MessageTS
		card.PostedAt = stage.PostedAt

		sig, err := e.AwaitSignal(ctx, stage)
		if err != nil {
			return nil, err
		}

		switch sig {
		case SignalPost:
			return &DraftResult{Action: SignalPost, Text: current}, nil

		case SignalEdit:
			edited, found := e.firstEditReply(ctx, stage.MessageTS)
			if !found {
				// no replacement text yet: treat as no actionable input
				e.log.Infow("Edit signal without replacement text, skipping",
					logger.FieldCardTS, stage.MessageTS)
				return &DraftResult{Action: SignalSkip}, nil
			}
			current = edited

		case SignalRegenerate:
			text, err := regenerate(ctx)
			if err != nil {
				e.ReportError(ctx, stage.MessageTS, err)
				return &DraftResult{Action: SignalSkip}, nil
			}
			current = text

		default: // skip or timeout
			return &DraftResult{Action: SignalSkip}, nil
		}
	}

	return &DraftResult{Action: SignalSkip}, nil
}

// firstEditReply scans the card's thread for the first edit command and
// returns its payload. First matching reply wins; later edits are ignored.
func (e *Engine) firstEditReply(ctx context.Context, cardTS string) (string, bool) {
	replies, err := e.transport.Replies(ctx, e.channel, cardTS, 100)
	if err != nil {
		e.log.Warnw("Could not read thread replies",
			logger.FieldCardTS, cardTS,
			logger.FieldError, err)
		return "", false
	}

	for _, msg := range replies {
		cmd, err := ParseCommand(msg.Text)
		if err != nil {
			continue
		}
		if cmd.Verb == VerbEdit {
			return cmd.Payload, true
		}
	}
	return "", false
}

// MarkProcessed writes the processed marker onto a message so repeated
// history scans never act on it twice.
func (e *Engine) MarkProcessed(ctx context.Context, ts string) error {
	return e.transport.AddReaction(ctx, e.channel, ts, ProcessedMarker)
}

// ReportError surfaces a failure into the channel, threaded under the
// current card. Reporting failures are logged, never propagated; the
// workflow proceeds regardless.
func (e *Engine) ReportError(ctx context.Context, threadTS string, cause error) {
	text := "⚠️ " + strings.TrimSpace(cause.Error())
	if _, err := e.transport.PostMessage(ctx, e.channel, text, threadTS); err != nil {
		e.log.Errorw("Could not report error to channel",
			logger.FieldThreadTS, threadTS,
			logger.FieldError, err,
			"cause", cause)
	}
}

// Say posts a plain message, optionally threaded. Convenience for flows.
func (e *Engine) Say(ctx context.Context, text, threadTS string) (string, error) {
	return e.transport.PostMessage(ctx, e.channel, text, threadTS)
}
