package scout

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/am"
	"github.com/teranos/spark/logger"
	"github.com/teranos/spark/social"
)

// SocialReader is the platform surface the scanner needs
type SocialReader interface {
	ResolveHandles(ctx context.Context, handles []string) (map[string]social.Account, error)
	RecentPosts(ctx context.Context, accountID string, limit int) ([]social.Post, error)
}

// Scanner sweeps the tiered watchlist and produces scored opportunities
type Scanner struct {
	social  SocialReader
	log     *zap.SugaredLogger
	timeNow func() time.Time
}

// NewScanner creates a scanner over a social reader
func NewScanner(reader SocialReader, log *zap.SugaredLogger) *Scanner {
	return &Scanner{
		social:  reader,
		log:     logger.AddScoutSymbol(log),
		timeNow: time.Now,
	}
}

// NewScannerWithClock creates a scanner with a custom clock for testing
func NewScannerWithClock(reader SocialReader, log *zap.SugaredLogger, clock func() time.Time) *Scanner {
	s := NewScanner(reader, log)
	s.timeNow = clock
	return s
}

// Result is one scan's output: the ranked shortlist plus any urgent alerts
type Result struct {
	Shortlist []Opportunity
	Urgent    []string
}

// Scan fetches recent posts of every watched account, scores them, and
// returns the shortlist. A failed fetch for one account is logged and
// skipped; it never fails the whole sweep.
func (s *Scanner) Scan(ctx context.Context, creators am.CreatorsConfig) (*Result, error) {
	tiers := []struct {
		tier    int
		handles []string
	}{
		{1, creators.Tier1},
		{2, creators.Tier2},
		{3, creators.Tier3},
	}

	var allHandles []string
	for _, t := range tiers {
		allHandles = append(allHandles, t.handles...)
	}
	if len(allHandles) == 0 {
		return &Result{}, nil
	}

	accounts, err := s.social.ResolveHandles(ctx, allHandles)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	var candidates []Opportunity
	var urgent []string

	for _, t := range tiers {
		for _, handle := range t.handles {
			acct, ok := accounts[strings.ToLower(handle)]
			if !ok {
				s.log.Debugw("Watched handle did not resolve", "handle", handle)
				continue
			}

			posts, err := s.social.RecentPosts(ctx, acct.ID, 5)
			if err != nil {
				s.log.Warnw("Failed to fetch recent posts, skipping account",
					"handle", handle,
					logger.FieldError, err)
				continue
			}

			for _, post := range posts {
				minutesAgo := now.Sub(post.CreatedAt).Minutes()
				if post.CreatedAt.IsZero() {
					minutesAgo = 9999
				}

				score := Score(t.tier, post.Metrics, minutesAgo)
				candidates = append(candidates, Opportunity{
					Handle:     handle,
					Followers:  acct.Followers,
					ObservedAt: post.CreatedAt,
					Summary:    summarize(post.Text),
					Why:        rationale(t.tier, score),
					Metrics:    post.Metrics,
					Score:      score,
					ContentID:  post.ID,
					Tier:       t.tier,
				})

				if IsUrgent(post.Text, post.Metrics, minutesAgo) {
					urgent = append(urgent, "@"+handle+" is taking questions right now: "+summarize(post.Text))
				}
			}
		}
	}

	shortlist := Shortlist(candidates)
	s.log.Infow("Opportunity scan complete",
		"candidates", len(candidates),
		"shortlisted", len(shortlist),
		"urgent", len(urgent))

	return &Result{Shortlist: shortlist, Urgent: urgent}, nil
}

// summarize flattens a post text to a single trimmed line for card display
func summarize(text string) string {
	flat := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(flat)
	if len(runes) > 140 {
		return string(runes[:140])
	}
	return flat
}

func rationale(tier, score int) string {
	switch {
	case tier == 1:
		return "Tier1 priority"
	case score >= 80:
		return "High score"
	default:
		return "Watch list"
	}
}
