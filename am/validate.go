package am

import "github.com/teranos/spark/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Coach.PollIntervalSeconds < 0 {
		return errors.Newf("coach.poll_interval_seconds must be >= 0, got %d", c.Coach.PollIntervalSeconds)
	}
	if c.Coach.CardTimeoutMinutes < 0 {
		return errors.Newf("coach.card_timeout_minutes must be >= 0, got %d", c.Coach.CardTimeoutMinutes)
	}

	// Budget values: 0 = no spend allowed (valid), negative = invalid
	if c.Coach.DailyBudgetUSD < 0 {
		return errors.Newf("coach.daily_budget_usd must be >= 0, got %f", c.Coach.DailyBudgetUSD)
	}
	if c.Coach.CostPerDraftUSD < 0 {
		return errors.Newf("coach.cost_per_draft_usd must be >= 0, got %f", c.Coach.CostPerDraftUSD)
	}

	// Theme selection indexes into this list; an empty override would
	// crash the morning workflow.
	if len(c.Coach.Themes) == 0 {
		return errors.New("coach.themes must list at least one theme")
	}

	if c.X.RequestsPerMinute < 0 {
		return errors.Newf("x.requests_per_minute must be >= 0, got %d", c.X.RequestsPerMinute)
	}

	if err := validateClock("schedule.morning", c.Schedule.MorningHour, c.Schedule.MorningMinute); err != nil {
		return err
	}
	if err := validateClock("schedule.afternoon", c.Schedule.AfternoonHour, c.Schedule.AfternoonMinute); err != nil {
		return err
	}
	if err := validateClock("schedule.summary", c.Schedule.SummaryHour, c.Schedule.SummaryMinute); err != nil {
		return err
	}
	if err := validateClock("schedule.weekly", c.Schedule.WeeklyHour, c.Schedule.WeeklyMinute); err != nil {
		return err
	}
	if c.Schedule.WeeklyWeekday < 0 || c.Schedule.WeeklyWeekday > 6 {
		return errors.Newf("schedule.weekly_weekday must be 0..6, got %d", c.Schedule.WeeklyWeekday)
	}
	for _, h := range c.Schedule.ScanHours {
		if h < 0 || h > 23 {
			return errors.Newf("schedule.scan_hours entries must be 0..23, got %d", h)
		}
	}
	if c.Schedule.MetricsEveryMin < 0 {
		return errors.Newf("schedule.metrics_every_minutes must be >= 0, got %d", c.Schedule.MetricsEveryMin)
	}

	return nil
}

func validateClock(key string, hour, minute int) error {
	if hour < 0 || hour > 23 {
		return errors.Newf("%s_hour must be 0..23, got %d", key, hour)
	}
	if minute < 0 || minute > 59 {
		return errors.Newf("%s_minute must be 0..59, got %d", key, minute)
	}
	return nil
}
