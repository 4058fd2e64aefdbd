// Package learn is the reinforcement store: per-theme preference weights
// driving epsilon-greedy theme selection, and per-feature success counters
// updated from delayed engagement snapshots.
package learn

import (
	"context"
	"database/sql"
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// Epsilon is the exploration probability for theme selection
const Epsilon = 0.25

// Theme weight bounds
const (
	minThemeWeight = 1
	maxThemeWeight = 5
)

// Feature weight clamp
const (
	minFeatureWeight = 0.05
	maxFeatureWeight = 0.95
)

// Success threshold for a published item's 24h snapshot
const (
	successMinLikes   = 5
	successMinReplies = 1
)

// FeatureStat is the learned record for one text feature
type FeatureStat struct {
	Feature   string
	Picks     int
	Successes int
	Weight    float64
}

// Store persists and updates reinforcement state
type Store struct {
	db        *sql.DB
	themes    []string
	log       *zap.SugaredLogger
	randFloat func() float64 // injectable for testing
	randIntn  func(n int) int
}

// NewStore creates a reinforcement store over the known theme set
func NewStore(db *sql.DB, themes []string, log *zap.SugaredLogger) *Store {
	return &Store{
		db:        db,
		themes:    themes,
		log:       logger.AddLearnSymbol(log),
		randFloat: rand.Float64,
		randIntn:  rand.Intn,
	}
}

// NewStoreWithRand creates a store with injected randomness for testing
func NewStoreWithRand(db *sql.DB, themes []string, log *zap.SugaredLogger, randFloat func() float64, randIntn func(int) int) *Store {
	s := NewStore(db, themes, log)
	s.randFloat = randFloat
	s.randIntn = randIntn
	return s
}

// PickTheme selects a theme epsilon-greedy: with probability 0.25 a uniform
// random theme, otherwise the highest-weighted one (ties broken by the
// configured theme order). The weight map is persisted on every call so
// accumulated drift is durable.
func (s *Store) PickTheme(ctx context.Context) (string, error) {
	if len(s.themes) == 0 {
		return "", errors.New("no themes configured")
	}
	weights, err := s.ThemeWeights(ctx)
	if err != nil {
		return "", err
	}

	var theme string
	if s.randFloat() < Epsilon {
		theme = s.themes[s.randIntn(len(s.themes))]
	} else {
		best := -1
		for _, t := range s.themes {
			if weights[t] > best {
				best = weights[t]
				theme = t
			}
		}
	}

	if err := s.saveThemeWeights(ctx, weights); err != nil {
		return "", err
	}

	s.log.Debugw("Theme picked", logger.FieldTheme, theme, "weights", weights)
	return theme, nil
}

// ThemeWeights returns the current weight map, seeding unknown themes at the
// minimum weight.
func (s *Store) ThemeWeights(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT theme, weight FROM theme_weights`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load theme weights")
	}
	defer rows.Close()

	weights := make(map[string]int, len(s.themes))
	for rows.Next() {
		var theme string
		var weight int
		if err := rows.Scan(&theme, &weight); err != nil {
			return nil, errors.Wrap(err, "failed to scan theme weight")
		}
		weights[theme] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range s.themes {
		if _, ok := weights[t]; !ok {
			weights[t] = minThemeWeight
		}
	}
	return weights, nil
}

func (s *Store) saveThemeWeights(ctx context.Context, weights map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin weights transaction")
	}
	defer tx.Rollback()

	for theme, weight := range weights {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO theme_weights (theme, weight, updated_at)
			VALUES (?, ?, datetime('now'))
			ON CONFLICT(theme) DO UPDATE SET
				weight = excluded.weight,
				updated_at = excluded.updated_at`,
			theme, weight); err != nil {
			return errors.Wrapf(err, "failed to save weight for theme %s", theme)
		}
	}
	return tx.Commit()
}

// UpdateThemeWeights classifies recent publishes into theme credits, boosts
// the winning theme by 1 (capped at 5), and decays every other theme by 10%
// (floored at 1, integer-truncated). Returns the boosted theme and its
// summed credit.
func (s *Store) UpdateThemeWeights(ctx context.Context, events []journal.PostEvent) (string, float64, error) {
	if len(s.themes) == 0 {
		return "", 0, errors.New("no themes configured")
	}
	weights, err := s.ThemeWeights(ctx)
	if err != nil {
		return "", 0, err
	}

	credits := make(map[string]float64, len(s.themes))
	for _, t := range s.themes {
		credits[t] = 0
	}
	for _, ev := range events {
		switch {
		case ev.Features.HasNumbers:
			credits["metrics"] += 1.0
		case ev.Features.AsksQuestion:
			credits["positioning"] += 0.7
		default:
			credits["build_in_public"] += 0.5
		}
	}

	best := s.themes[0]
	for _, t := range s.themes {
		if credits[t] > credits[best] {
			best = t
		}
	}

	for theme, weight := range weights {
		if theme == best {
			weight++
			if weight > maxThemeWeight {
				weight = maxThemeWeight
			}
		} else {
			weight = int(float64(weight) * 0.9)
			if weight < minThemeWeight {
				weight = minThemeWeight
			}
		}
		weights[theme] = weight
	}

	if err := s.saveThemeWeights(ctx, weights); err != nil {
		return "", 0, err
	}

	s.log.Infow("Theme weights updated",
		logger.FieldTheme, best,
		logger.FieldScore, credits[best],
		"events", len(events))
	return best, credits[best], nil
}

// RecordSelection appends the operator's choice of a published option
func (s *Store) RecordSelection(ctx context.Context, workflow string, optionIndex int, theme, contentID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selections (id, workflow, option_index, theme, content_id)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), workflow, optionIndex, theme, contentID)
	if err != nil {
		return errors.Wrap(err, "failed to record selection")
	}

	// A selection is a pick for every feature the published text carried;
	// outcome snapshots later decide which picks were successful.
	return nil
}

// RecordPicks increments the pick counter for each feature present in a
// published text, so success ratios have a denominator.
func (s *Store) RecordPicks(ctx context.Context, features journal.TextFeatures) error {
	for _, f := range presentFeatures(features) {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO feature_stats (feature, picks, successes, weight, updated_at)
			VALUES (?, 1, 0, 0.05, datetime('now'))
			ON CONFLICT(feature) DO UPDATE SET
				picks = picks + 1,
				weight = MAX(0.05, MIN(0.95, CAST(successes AS REAL) / MAX(1, picks + 1))),
				updated_at = excluded.updated_at`,
			f); err != nil {
			return errors.Wrapf(err, "failed to record pick for feature %s", f)
		}
	}
	return nil
}

// RecordOutcome consumes a 24h engagement snapshot for a published item.
// Success is likes >= 5 or replies >= 1; on success every feature recorded
// at publish time gets a success credit and a recomputed clamped weight.
func (s *Store) RecordOutcome(ctx context.Context, features journal.TextFeatures, m social.Metrics) (bool, error) {
	success := m.Likes >= successMinLikes || m.Replies >= successMinReplies
	if !success {
		return false, nil
	}

	for _, f := range presentFeatures(features) {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO feature_stats (feature, picks, successes, weight, updated_at)
			VALUES (?, 1, 1, 0.95, datetime('now'))
			ON CONFLICT(feature) DO UPDATE SET
				successes = successes + 1,
				weight = MAX(0.05, MIN(0.95, CAST(successes + 1 AS REAL) / MAX(1, picks))),
				updated_at = excluded.updated_at`,
			f); err != nil {
			return false, errors.Wrapf(err, "failed to record success for feature %s", f)
		}
	}

	s.log.Infow("Outcome learned",
		"success", success,
		"likes", m.Likes,
		"replies", m.Replies)
	return true, nil
}

// FeatureStats returns all learned feature records
func (s *Store) FeatureStats(ctx context.Context) (map[string]FeatureStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT feature, picks, successes, weight FROM feature_stats`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load feature stats")
	}
	defer rows.Close()

	stats := make(map[string]FeatureStat)
	for rows.Next() {
		var st FeatureStat
		if err := rows.Scan(&st.Feature, &st.Picks, &st.Successes, &st.Weight); err != nil {
			return nil, errors.Wrap(err, "failed to scan feature stat")
		}
		stats[st.Feature] = st
	}
	return stats, rows.Err()
}

// presentFeatures lists the named features a text actually exhibits
func presentFeatures(f journal.TextFeatures) []string {
	var present []string
	if f.HasNumbers {
		present = append(present, "has_numbers")
	}
	if f.AsksQuestion {
		present = append(present, "asks_question")
	}
	if f.EmojiCount > 0 {
		present = append(present, "uses_emoji")
	}
	if f.Length > 0 && f.Length <= 140 {
		present = append(present, "short_form")
	}
	if f.PersonalStory {
		present = append(present, "personal_story")
	}
	return present
}
