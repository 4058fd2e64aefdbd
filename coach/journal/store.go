// Package journal is the append-only publish log. Every post or reply the
// coach publishes is recorded here with its text features, so the metrics
// sampler can find items due for a snapshot and the reinforcement store can
// join outcomes back to the features that produced them.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/spark/errors"
)

// Kind distinguishes original posts from replies
type Kind string

const (
	KindPost  Kind = "post"
	KindReply Kind = "reply"
)

// PostEvent is one published item
type PostEvent struct {
	ID           string
	Kind         Kind
	ContentID    string
	InReplyTo    string
	TargetHandle string
	PublishedAt  time.Time
	TextHash     string
	Theme        string
	Features     TextFeatures
}

// Store persists post events in SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a journal store over an already-migrated database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends a publish event. The raw text is hashed and reduced to
// features; it is not stored.
func (s *Store) Record(ctx context.Context, kind Kind, contentID, inReplyTo, targetHandle, theme, text string, publishedAt time.Time) (*PostEvent, error) {
	ev := &PostEvent{
		ID:           uuid.NewString(),
		Kind:         kind,
		ContentID:    contentID,
		InReplyTo:    inReplyTo,
		TargetHandle: targetHandle,
		PublishedAt:  publishedAt.UTC(),
		TextHash:     HashText(text),
		Theme:        theme,
		Features:     ExtractFeatures(text),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_events (
			id, kind, content_id, in_reply_to, target_handle, published_at,
			text_hash, theme, length, has_numbers, asks_question,
			emoji_count, line_count, personal_story
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.ContentID, nullable(ev.InReplyTo), nullable(ev.TargetHandle),
		ev.PublishedAt.Format(time.RFC3339), ev.TextHash, nullable(ev.Theme),
		ev.Features.Length, boolInt(ev.Features.HasNumbers), boolInt(ev.Features.AsksQuestion),
		ev.Features.EmojiCount, ev.Features.LineCount, boolInt(ev.Features.PersonalStory),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to record post event")
	}
	return ev, nil
}

// PostsSince returns events published at or after the cutoff, oldest first.
// A zero kind returns all kinds.
func (s *Store) PostsSince(ctx context.Context, since time.Time, kind Kind) ([]PostEvent, error) {
	query := `
		SELECT id, kind, content_id, COALESCE(in_reply_to, ''), COALESCE(target_handle, ''),
		       published_at, text_hash, COALESCE(theme, ''), length, has_numbers,
		       asks_question, emoji_count, line_count, personal_story
		FROM post_events
		WHERE published_at >= ?`
	args := []any{since.UTC().Format(time.RFC3339)}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY published_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query post events")
	}
	defer rows.Close()

	var events []PostEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// ByContentID returns the event for a published item
func (s *Store) ByContentID(ctx context.Context, contentID string) (*PostEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, content_id, COALESCE(in_reply_to, ''), COALESCE(target_handle, ''),
		       published_at, text_hash, COALESCE(theme, ''), length, has_numbers,
		       asks_question, emoji_count, line_count, personal_story
		FROM post_events WHERE content_id = ?`, contentID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "no post event for content %s", contentID)
	}
	return ev, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*PostEvent, error) {
	var ev PostEvent
	var kind, publishedAt string
	var hasNumbers, asksQuestion, personalStory int

	err := row.Scan(
		&ev.ID, &kind, &ev.ContentID, &ev.InReplyTo, &ev.TargetHandle,
		&publishedAt, &ev.TextHash, &ev.Theme, &ev.Features.Length, &hasNumbers,
		&asksQuestion, &ev.Features.EmojiCount, &ev.Features.LineCount, &personalStory,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan post event")
	}

	ev.Kind = Kind(kind)
	ev.Features.HasNumbers = hasNumbers != 0
	ev.Features.AsksQuestion = asksQuestion != 0
	ev.Features.PersonalStory = personalStory != 0

	t, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "bad published_at on event %s", ev.ID)
	}
	ev.PublishedAt = t

	return &ev, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
