// Package coach wires the scheduler, session engine, scout, ledger, and
// reinforcement store into the named approval workflows.
package coach

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/am"
	"github.com/teranos/spark/coach/budget"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/learn"
	"github.com/teranos/spark/coach/metrics"
	"github.com/teranos/spark/coach/schedule"
	"github.com/teranos/spark/coach/scout"
	"github.com/teranos/spark/coach/session"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/slack"
)

// Tag prefixes every message the coach writes to the channel
const Tag = "[coach]"

// Titles of the cards carrying publishable content. The daily summary
// counts these as offered, distinct from alerts, notices, and confirmations
// that also carry the tag.
const (
	suggestionCardTitle = Tag + " Suggestions"
	afternoonCardTitle  = Tag + " Build-in-public draft"
)

// Messenger is the messaging surface the flows need: the card transport
// plus channel history for the daily summary. *slack.Client satisfies it.
type Messenger interface {
	session.Transport
	History(ctx context.Context, channel string, oldest time.Time, limit int) ([]slack.Message, error)
}

// Generator produces text completions with per-task model fallback.
// *anthropic.Client satisfies it.
type Generator interface {
	Complete(ctx context.Context, task anthropic.Task, prompt string) (*anthropic.Completion, error)
}

// Publisher is the social-platform write/read surface the flows need.
// *social.Client satisfies it.
type Publisher interface {
	CreatePost(ctx context.Context, text string) (string, error)
	CreateReply(ctx context.Context, inReplyTo, text string) (string, error)
	PostText(ctx context.Context, postID string) (string, error)
}

// Coach owns the workflow implementations behind each scheduled task.
// Flows snapshot the configuration once at entry via config(), so a hot
// reload through ApplyConfig never changes behavior mid-workflow.
type Coach struct {
	cfgMu     sync.RWMutex
	cfg       *am.Config
	engine    *session.Engine
	messenger Messenger
	gen       Generator
	publisher Publisher
	scanner   *scout.Scanner
	reader    scout.SocialReader
	ledger    *budget.Ledger
	learn     *learn.Store
	journal   *journal.Store
	sampler   *metrics.Sampler
	log       *zap.SugaredLogger
	timeNow   func() time.Time
}

// Deps bundles the collaborators a Coach needs
type Deps struct {
	Config    *am.Config
	Messenger Messenger
	Generator Generator
	Publisher Publisher
	Scanner   *scout.Scanner
	Reader    scout.SocialReader
	Ledger    *budget.Ledger
	Learn     *learn.Store
	Journal   *journal.Store
	Sampler   *metrics.Sampler
	Logger    *zap.SugaredLogger
}

// New creates a coach over its collaborators
func New(deps Deps) *Coach {
	engine := session.NewEngine(deps.Messenger, session.Config{
		Channel:      deps.Config.Slack.ChannelID,
		PollInterval: time.Duration(deps.Config.Coach.PollIntervalSeconds) * time.Second,
		CardTimeout:  time.Duration(deps.Config.Coach.CardTimeoutMinutes) * time.Minute,
	}, deps.Logger)

	return &Coach{
		cfg:       deps.Config,
		engine:    engine,
		messenger: deps.Messenger,
		gen:       deps.Generator,
		publisher: deps.Publisher,
		scanner:   deps.Scanner,
		reader:    deps.Reader,
		ledger:    deps.Ledger,
		learn:     deps.Learn,
		journal:   deps.Journal,
		sampler:   deps.Sampler,
		log:       logger.AddCoachSymbol(deps.Logger),
		timeNow:   time.Now,
	}
}

// config returns the current configuration. Flows call this once at entry
// and work from the snapshot for their whole run.
func (c *Coach) config() *am.Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// ApplyConfig swaps in a new configuration after validating it. Schedule
// times, the watchlist, themes, and the budget cap take effect from the
// next tick; transport credentials and the card channel need a restart.
func (c *Coach) ApplyConfig(next *am.Config) error {
	if err := next.Validate(); err != nil {
		return err
	}
	c.cfgMu.Lock()
	c.cfg = next
	c.cfgMu.Unlock()
	c.ledger.SetCap(next.Coach.DailyBudgetUSD)
	c.log.Infow("Configuration reloaded",
		"budget_usd", next.Coach.DailyBudgetUSD,
		logger.FieldCount, len(next.Coach.Themes))
	return nil
}

// Entries maps the configured schedule onto the workflow implementations.
// Predicates read the schedule at tick time, so edits apply without restart.
func (c *Coach) Entries() []schedule.Entry {
	return []schedule.Entry{
		{
			Name: "suggest",
			When: func(t time.Time) bool {
				s := c.config().Schedule
				return schedule.At(s.MorningHour, s.MorningMinute)(t)
			},
			Run: c.RunMorningSession,
		},
		{
			Name: "afternoon",
			When: func(t time.Time) bool {
				s := c.config().Schedule
				return schedule.At(s.AfternoonHour, s.AfternoonMinute)(t)
			},
			Run: c.RunAfternoonSession,
		},
		{
			Name: "scan",
			When: func(t time.Time) bool {
				return schedule.AtHours(c.config().Schedule.ScanHours)(t)
			},
			Run: c.RunOpportunityScan,
		},
		{
			Name: "summary",
			When: func(t time.Time) bool {
				s := c.config().Schedule
				return schedule.At(s.SummaryHour, s.SummaryMinute)(t)
			},
			Run: c.RunDailySummary,
		},
		{
			Name: "weekly",
			When: func(t time.Time) bool {
				s := c.config().Schedule
				return schedule.AtWeekday(time.Weekday(s.WeeklyWeekday), s.WeeklyHour, s.WeeklyMinute)(t)
			},
			Run: c.RunWeeklyBrief,
		},
		{
			Name: "metrics",
			When: func(t time.Time) bool {
				return schedule.Every(c.config().Schedule.MetricsEveryMin)(t)
			},
			Run: c.RunMetricsSweep,
		},
	}
}

// RunTask runs one named workflow once, for manual invocation from the CLI.
// Unknown names are reported, not fatal.
func (c *Coach) RunTask(ctx context.Context, name string) error {
	if name == "voice" {
		return c.RunVoiceAnalysis(ctx)
	}
	for _, entry := range c.Entries() {
		if entry.Name == name {
			return entry.Run(ctx)
		}
	}
	c.log.Warnw("Unknown task", logger.FieldTask, name)
	return nil
}

// RunMetricsSweep captures any due engagement snapshots
func (c *Coach) RunMetricsSweep(ctx context.Context) error {
	captured, err := c.sampler.Sweep(ctx)
	if err != nil {
		return err
	}
	if captured > 0 {
		c.log.Infow("Metrics sweep captured snapshots", logger.FieldCount, captured)
	}
	return nil
}

// allowBudget charges one draft against the ledger. On refusal it posts the
// pause notice (threaded when threadTS is non-empty) and returns false.
func (c *Coach) allowBudget(ctx context.Context, threadTS string) bool {
	ok, err := c.ledger.Allow(ctx, c.config().Coach.CostPerDraftUSD)
	if err != nil {
		c.log.Errorw("Budget check failed", logger.FieldError, err)
		return false
	}
	if !ok {
		if _, err := c.engine.Say(ctx, Tag+" Budget reached; drafts paused for today.", threadTS); err != nil {
			c.log.Warnw("Could not post budget notice", logger.FieldError, err)
		}
		return false
	}
	return true
}
