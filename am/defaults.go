package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "spark.db")

	// Social client defaults
	v.SetDefault("x.requests_per_minute", 30)

	// Generation defaults
	v.SetDefault("anthropic.max_tokens", 600)

	// Coach workflow defaults
	v.SetDefault("coach.utc_offset_minutes", 60) // fixed UTC+1, no DST handling
	v.SetDefault("coach.poll_interval_seconds", 5)
	v.SetDefault("coach.card_timeout_minutes", 30)
	v.SetDefault("coach.daily_budget_usd", 0.50)
	v.SetDefault("coach.cost_per_draft_usd", 0.04)
	v.SetDefault("coach.themes", []string{
		"metrics",
		"build_in_public",
		"positioning",
		"technical",
		"hot_take",
	})
	v.SetDefault("coach.log_theme", "gruvbox")

	// Schedule defaults, in local wall-clock time
	v.SetDefault("schedule.morning_hour", 7)
	v.SetDefault("schedule.morning_minute", 30)
	v.SetDefault("schedule.afternoon_hour", 13)
	v.SetDefault("schedule.afternoon_minute", 0)
	v.SetDefault("schedule.summary_hour", 18)
	v.SetDefault("schedule.summary_minute", 0)
	v.SetDefault("schedule.weekly_weekday", 0) // Sunday
	v.SetDefault("schedule.weekly_hour", 19)
	v.SetDefault("schedule.weekly_minute", 0)
	v.SetDefault("schedule.scan_hours", []int{9, 12, 15})
	v.SetDefault("schedule.metrics_every_minutes", 30)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "SPARK_DATABASE_PATH")

	v.BindEnv("slack.bot_token", "SPARK_SLACK_BOT_TOKEN")
	v.BindEnv("slack.channel_id", "SPARK_SLACK_CHANNEL_ID")

	v.BindEnv("x.api_key", "SPARK_X_API_KEY")
	v.BindEnv("x.api_secret", "SPARK_X_API_SECRET")
	v.BindEnv("x.access_token", "SPARK_X_ACCESS_TOKEN")
	v.BindEnv("x.access_secret", "SPARK_X_ACCESS_SECRET")
	v.BindEnv("x.bearer_token", "SPARK_X_BEARER_TOKEN")

	v.BindEnv("anthropic.api_key", "SPARK_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "spark.db"
	}
	return c.Database.Path
}

// GetLogTheme returns the log theme (default: gruvbox)
func (c *Config) GetLogTheme() string {
	if c.Coach.LogTheme == "" {
		return "gruvbox"
	}
	return c.Coach.LogTheme
}
