package scout

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/am"
	"github.com/teranos/spark/social"
)

func TestScoreBounds(t *testing.T) {
	// Zero everything, tier 3: no boost at all
	if got := Score(3, social.Metrics{}, 9999); got != 0 {
		t.Errorf("floor score = %d, want 0", got)
	}

	// Huge engagement clamps at 100
	huge := social.Metrics{Likes: 100000, Reposts: 50000, Replies: 30000}
	if got := Score(1, huge, 0); got != 100 {
		t.Errorf("ceiling score = %d, want 100", got)
	}
}

func TestScoreFormula(t *testing.T) {
	// base = 4 + 2*0 + 3*0 = 4, sqrt = 2; recency at 100 min = 20*0.2 = 4; tier2 = 20
	m := social.Metrics{Likes: 4}
	if got := Score(2, m, 100); got != 26 {
		t.Errorf("score = %d, want 26", got)
	}

	// Recency contributes nothing past the 120-minute window
	if got := Score(2, m, 240); got != 22 {
		t.Errorf("stale score = %d, want 22", got)
	}
}

func TestScoreMonotonicity(t *testing.T) {
	base := social.Metrics{Likes: 10, Reposts: 5, Replies: 2}
	ref := Score(2, base, 60)

	if got := Score(2, social.Metrics{Likes: 20, Reposts: 5, Replies: 2}, 60); got < ref {
		t.Error("more likes should never lower the score")
	}
	if got := Score(2, social.Metrics{Likes: 10, Reposts: 10, Replies: 2}, 60); got < ref {
		t.Error("more reposts should never lower the score")
	}
	if got := Score(2, social.Metrics{Likes: 10, Reposts: 5, Replies: 5}, 60); got < ref {
		t.Error("more replies should never lower the score")
	}
	if got := Score(1, base, 60); got < ref {
		t.Error("higher tier should never lower the score")
	}
}

func TestShortlistTierRules(t *testing.T) {
	candidates := []Opportunity{
		{Handle: "t1-low", Tier: 1, Score: 10},
		{Handle: "t2-pass", Tier: 2, Score: 80},
		{Handle: "t2-fail", Tier: 2, Score: 79},
		{Handle: "t3-pass", Tier: 3, Score: 95},
		{Handle: "t3-fail", Tier: 3, Score: 85},
	}

	list := Shortlist(candidates)
	if len(list) != 3 {
		t.Fatalf("shortlist length = %d, want 3", len(list))
	}

	byHandle := map[string]Opportunity{}
	for _, o := range list {
		byHandle[o.Handle] = o
	}
	if _, ok := byHandle["t1-low"]; !ok {
		t.Error("tier-1 candidate must always be included")
	}
	if _, ok := byHandle["t2-fail"]; ok {
		t.Error("tier-2 below 80 must be excluded")
	}
	if _, ok := byHandle["t3-fail"]; ok {
		t.Error("tier-3 below 90 must be excluded")
	}

	// Sorted descending, dense ranks from 1
	if list[0].Handle != "t3-pass" || list[0].Rank != 1 {
		t.Errorf("top entry = %s rank %d, want t3-pass rank 1", list[0].Handle, list[0].Rank)
	}
	if list[2].Handle != "t1-low" || list[2].Rank != 3 {
		t.Errorf("bottom entry = %s rank %d, want t1-low rank 3", list[2].Handle, list[2].Rank)
	}
}

func TestShortlistLowTier1BeatsHighTier3(t *testing.T) {
	candidates := []Opportunity{
		{Handle: "vip", Tier: 1, Score: 10},
		{Handle: "rando", Tier: 3, Score: 85},
	}
	list := Shortlist(candidates)
	if len(list) != 1 {
		t.Fatalf("shortlist length = %d, want 1", len(list))
	}
	if list[0].Handle != "vip" || list[0].Rank != 1 {
		t.Errorf("got %s rank %d, want vip rank 1", list[0].Handle, list[0].Rank)
	}
}

func TestShortlistCap(t *testing.T) {
	var candidates []Opportunity
	for i := 0; i < 30; i++ {
		candidates = append(candidates, Opportunity{Tier: 1, Score: i})
	}
	list := Shortlist(candidates)
	if len(list) != ShortlistCap {
		t.Errorf("shortlist length = %d, want cap %d", len(list), ShortlistCap)
	}
	for i, o := range list {
		if o.Rank != i+1 {
			t.Errorf("rank at %d = %d, want %d", i, o.Rank, i+1)
		}
	}
}

func TestIsUrgent(t *testing.T) {
	hot := social.Metrics{Replies: 25}
	if !IsUrgent("Doing an AMA for the next hour", hot, 3) {
		t.Error("fresh reply-heavy AMA should be urgent")
	}
	if IsUrgent("Doing an AMA for the next hour", hot, 10) {
		t.Error("older than 5 minutes is not urgent")
	}
	if IsUrgent("Doing an AMA", social.Metrics{Replies: 5}, 3) {
		t.Error("fewer than 20 replies is not urgent")
	}
	if IsUrgent("just shipped a thing", hot, 3) {
		t.Error("no interaction invitation is not urgent")
	}
	if !IsUrgent("ask me anything about databases", hot, 1) {
		t.Error("'ask me' pattern should be urgent")
	}
}

type fakeSocial struct {
	accounts map[string]social.Account
	posts    map[string][]social.Post
	failFor  map[string]bool
}

func (f *fakeSocial) ResolveHandles(ctx context.Context, handles []string) (map[string]social.Account, error) {
	return f.accounts, nil
}

func (f *fakeSocial) RecentPosts(ctx context.Context, accountID string, limit int) ([]social.Post, error) {
	if f.failFor[accountID] {
		return nil, context.DeadlineExceeded
	}
	return f.posts[accountID], nil
}

func TestScanSkipsFailedAccounts(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	fake := &fakeSocial{
		accounts: map[string]social.Account{
			"good": {ID: "1", Username: "good", Followers: 1000},
			"bad":  {ID: "2", Username: "bad", Followers: 2000},
		},
		posts: map[string][]social.Post{
			"1": {{ID: "p1", Text: "hello world", CreatedAt: now.Add(-10 * time.Minute), Metrics: social.Metrics{Likes: 3}}},
		},
		failFor: map[string]bool{"2": true},
	}

	scanner := NewScannerWithClock(fake, zap.NewNop().Sugar(), func() time.Time { return now })
	result, err := scanner.Scan(context.Background(), am.CreatorsConfig{Tier1: []string{"good", "bad"}})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Shortlist) != 1 {
		t.Fatalf("shortlist = %d entries, want 1 (failed account skipped)", len(result.Shortlist))
	}
	if result.Shortlist[0].Handle != "good" {
		t.Errorf("handle = %s", result.Shortlist[0].Handle)
	}
}

func TestScanEmptyWatchlist(t *testing.T) {
	scanner := NewScanner(&fakeSocial{}, zap.NewNop().Sugar())
	result, err := scanner.Scan(context.Background(), am.CreatorsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Shortlist) != 0 || len(result.Urgent) != 0 {
		t.Error("empty watchlist should produce an empty result")
	}
}
