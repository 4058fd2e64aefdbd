// Package metrics re-measures engagement of published posts at fixed delays
// (30m, 2h, 6h, 24h) and stores snapshots. The 24h snapshot triggers a
// reinforcement update for that post.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// Bucket labels a fixed delay after publish
type Bucket struct {
	Label  string
	Offset time.Duration
}

// Buckets are the configured snapshot delays, ordered
var Buckets = []Bucket{
	{"30m", 30 * time.Minute},
	{"2h", 120 * time.Minute},
	{"6h", 360 * time.Minute},
	{"24h", 1440 * time.Minute},
}

// captureWindow is the tolerance around each offset. A post is snapshotted
// for a bucket only while its age is inside offset +- captureWindow.
const captureWindow = 5 * time.Minute

// MetricsFetcher is the platform surface the sampler needs
type MetricsFetcher interface {
	PostMetrics(ctx context.Context, postID string) (*social.Metrics, error)
}

// OutcomeLearner consumes 24h snapshots
type OutcomeLearner interface {
	RecordOutcome(ctx context.Context, features journal.TextFeatures, m social.Metrics) (bool, error)
}

// Snapshot is one stored engagement measurement
type Snapshot struct {
	ContentID  string
	Bucket     string
	CapturedAt time.Time
	Metrics    social.Metrics
	Learned    bool
}

// Sampler sweeps the publish journal for posts due a snapshot
type Sampler struct {
	db      *sql.DB
	journal *journal.Store
	social  MetricsFetcher
	learner OutcomeLearner
	log     *zap.SugaredLogger
	timeNow func() time.Time
}

// NewSampler creates a sampler. learner may be nil to disable the
// reinforcement trigger (used by backfill tooling).
func NewSampler(db *sql.DB, js *journal.Store, fetcher MetricsFetcher, learner OutcomeLearner, log *zap.SugaredLogger) *Sampler {
	return &Sampler{
		db:      db,
		journal: js,
		social:  fetcher,
		learner: learner,
		log:     log,
		timeNow: time.Now,
	}
}

// NewSamplerWithClock creates a sampler with a custom clock for testing
func NewSamplerWithClock(db *sql.DB, js *journal.Store, fetcher MetricsFetcher, learner OutcomeLearner, log *zap.SugaredLogger, clock func() time.Time) *Sampler {
	s := NewSampler(db, js, fetcher, learner, log)
	s.timeNow = clock
	return s
}

// Sweep checks every original post from the last 25 hours against the bucket
// windows and captures any due snapshot. Failed fetches are logged and
// skipped; a sweep never fails outright.
func (s *Sampler) Sweep(ctx context.Context) (int, error) {
	now := s.timeNow()
	posts, err := s.journal.PostsSince(ctx, now.Add(-25*time.Hour), journal.KindPost)
	if err != nil {
		return 0, err
	}

	captured := 0
	for _, post := range posts {
		age := now.Sub(post.PublishedAt)
		for _, bucket := range Buckets {
			delta := age - bucket.Offset
			if delta <= -captureWindow || delta >= captureWindow {
				continue
			}

			exists, err := s.hasSnapshot(ctx, post.ContentID, bucket.Label)
			if err != nil {
				return captured, err
			}
			if exists {
				continue
			}

			if err := s.capture(ctx, &post, bucket, now); err != nil {
				s.log.Warnw("Snapshot capture failed, skipping this cycle",
					logger.FieldPostID, post.ContentID,
					logger.FieldBucket, bucket.Label,
					logger.FieldError, err)
				continue
			}
			captured++
		}
	}
	return captured, nil
}

func (s *Sampler) capture(ctx context.Context, post *journal.PostEvent, bucket Bucket, now time.Time) error {
	m, err := s.social.PostMetrics(ctx, post.ContentID)
	if err != nil {
		return err
	}

	learned := false
	if bucket.Label == "24h" && s.learner != nil {
		if _, err := s.learner.RecordOutcome(ctx, post.Features, *m); err != nil {
			return err
		}
		learned = true
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metrics_snapshots (content_id, bucket, captured_at, likes, reposts, replies, quotes, learned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id, bucket) DO NOTHING`,
		post.ContentID, bucket.Label, now.UTC().Format(time.RFC3339),
		m.Likes, m.Reposts, m.Replies, m.Quotes, boolInt(learned))
	if err != nil {
		return errors.Wrap(err, "failed to insert snapshot")
	}

	s.log.Infow("Snapshot captured",
		logger.FieldPostID, post.ContentID,
		logger.FieldBucket, bucket.Label,
		"likes", m.Likes,
		"replies", m.Replies)
	return nil
}

func (s *Sampler) hasSnapshot(ctx context.Context, contentID, bucket string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM metrics_snapshots WHERE content_id = ? AND bucket = ?`,
		contentID, bucket).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to check snapshot")
	}
	return true, nil
}

// Snapshots returns all stored snapshots for a post, bucket order preserved
func (s *Sampler) Snapshots(ctx context.Context, contentID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_id, bucket, captured_at, likes, reposts, replies, quotes, learned
		FROM metrics_snapshots WHERE content_id = ?`, contentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close()

	byBucket := make(map[string]Snapshot)
	for rows.Next() {
		var snap Snapshot
		var capturedAt string
		var learned int
		if err := rows.Scan(&snap.ContentID, &snap.Bucket, &capturedAt,
			&snap.Metrics.Likes, &snap.Metrics.Reposts, &snap.Metrics.Replies,
			&snap.Metrics.Quotes, &learned); err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot")
		}
		snap.Learned = learned != 0
		if t, err := time.Parse(time.RFC3339, capturedAt); err == nil {
			snap.CapturedAt = t
		}
		byBucket[snap.Bucket] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var snaps []Snapshot
	for _, bucket := range Buckets {
		if snap, ok := byBucket[bucket.Label]; ok {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
