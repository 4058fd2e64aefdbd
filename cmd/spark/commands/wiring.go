package commands

import (
	"database/sql"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/am"
	"github.com/teranos/spark/coach"
	"github.com/teranos/spark/coach/budget"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/learn"
	"github.com/teranos/spark/coach/metrics"
	"github.com/teranos/spark/coach/scout"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/slack"
	"github.com/teranos/spark/social"
)

// buildCoach assembles the coach over live clients and the given database
func buildCoach(cfg *am.Config, database *sql.DB) *coach.Coach {
	log := logger.Logger

	slackClient := slack.NewClient(cfg.Slack.BotToken)
	socialClient := social.NewClient(social.Config{
		BearerToken:       cfg.X.BearerToken,
		AccessToken:       cfg.X.AccessToken,
		RequestsPerMinute: cfg.X.RequestsPerMinute,
	})
	generator := anthropic.NewClient(anthropic.Config{
		APIKey:    cfg.Anthropic.APIKey,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})

	journalStore := journal.NewStore(database)
	learnStore := learn.NewStore(database, cfg.Coach.Themes, log)

	return coach.New(coach.Deps{
		Config:    cfg,
		Messenger: slackClient,
		Generator: generator,
		Publisher: socialClient,
		Scanner:   scout.NewScanner(socialClient, log),
		Reader:    socialClient,
		Ledger:    budget.NewLedger(database, cfg.Coach.DailyBudgetUSD, log),
		Learn:     learnStore,
		Journal:   journalStore,
		Sampler:   metrics.NewSampler(database, journalStore, socialClient, learnStore, log),
		Logger:    log,
	})
}
