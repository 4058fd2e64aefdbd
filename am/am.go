// Package am holds the spark configuration ("I am").
// Configuration is read from ~/.spark/config.toml with SPARK_* env overrides.
package am

// Config represents the core spark configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Slack     SlackConfig     `mapstructure:"slack"`
	X         XConfig         `mapstructure:"x"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Coach     CoachConfig     `mapstructure:"coach"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Creators  CreatorsConfig  `mapstructure:"creators"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SlackConfig configures the messaging transport used for operator approval
type SlackConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"`
}

// XConfig configures the social-platform client
type XConfig struct {
	APIKey            string `mapstructure:"api_key"`
	APISecret         string `mapstructure:"api_secret"`
	AccessToken       string `mapstructure:"access_token"`
	AccessSecret      string `mapstructure:"access_secret"`
	BearerToken       string `mapstructure:"bearer_token"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"` // client-side rate limit (default: 30)
}

// AnthropicConfig configures the text-generation backend
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`      // non-empty pins a single model, disabling fallback chains
	MaxTokens int    `mapstructure:"max_tokens"` // per-completion cap (default: 600)
}

// CoachConfig configures workflow behavior: approval waits, budget, themes.
type CoachConfig struct {
	// Wall-clock offset from UTC in minutes for schedule evaluation.
	// Fixed offset; DST transitions are deliberately not handled.
	UTCOffsetMinutes int `mapstructure:"utc_offset_minutes"`

	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"` // reaction poll cadence (default: 5)
	CardTimeoutMinutes  int `mapstructure:"card_timeout_minutes"`  // per-card approval window (default: 30)

	DailyBudgetUSD  float64 `mapstructure:"daily_budget_usd"`   // daily generation spend cap (default: 0.50)
	CostPerDraftUSD float64 `mapstructure:"cost_per_draft_usd"` // estimated cost charged per draft (default: 0.04)

	Themes []string `mapstructure:"themes"` // known content themes for reinforcement

	LogTheme string `mapstructure:"log_theme"` // gruvbox or mono
}

// ScheduleConfig configures when each workflow fires, in local wall-clock time
// (UTC plus Coach.UTCOffsetMinutes).
type ScheduleConfig struct {
	MorningHour     int   `mapstructure:"morning_hour"`
	MorningMinute   int   `mapstructure:"morning_minute"`
	AfternoonHour   int   `mapstructure:"afternoon_hour"`
	AfternoonMinute int   `mapstructure:"afternoon_minute"`
	SummaryHour     int   `mapstructure:"summary_hour"`
	SummaryMinute   int   `mapstructure:"summary_minute"`
	WeeklyWeekday   int   `mapstructure:"weekly_weekday"` // 0 = Sunday
	WeeklyHour      int   `mapstructure:"weekly_hour"`
	WeeklyMinute    int   `mapstructure:"weekly_minute"`
	ScanHours       []int `mapstructure:"scan_hours"`
	MetricsEveryMin int   `mapstructure:"metrics_every_minutes"` // snapshot sweep cadence (default: 30)
}

// CreatorsConfig holds the tiered watchlist of external accounts.
// Tier 1 is highest priority and always shortlisted.
type CreatorsConfig struct {
	Tier1 []string `mapstructure:"tier1"`
	Tier2 []string `mapstructure:"tier2"`
	Tier3 []string `mapstructure:"tier3"`
}
