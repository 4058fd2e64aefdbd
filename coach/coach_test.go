package coach

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/spark/ai/anthropic"
	"github.com/teranos/spark/am"
	"github.com/teranos/spark/coach/budget"
	"github.com/teranos/spark/coach/journal"
	"github.com/teranos/spark/coach/learn"
	"github.com/teranos/spark/coach/metrics"
	"github.com/teranos/spark/coach/scout"
	"github.com/teranos/spark/coach/session"
	"github.com/teranos/spark/db"
	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/slack"
	"github.com/teranos/spark/social"
)

type sentMessage struct {
	text     string
	threadTS string
	ts       string
}

// fakeMessenger scripts reactions and thread replies by the ordinal of the
// message they attach to, since timestamps are assigned at post time.
type fakeMessenger struct {
	mu       sync.Mutex
	posts    []sentMessage
	added    map[string][]string
	scripted map[int]map[string]int
	replies  map[int][]slack.Message
	history  []slack.Message
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		added:    make(map[string][]string),
		scripted: make(map[int]map[string]int),
		replies:  make(map[int][]slack.Message),
	}
}

func (m *fakeMessenger) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := fmt.Sprintf("400.%03d", len(m.posts)+1)
	m.posts = append(m.posts, sentMessage{text: text, threadTS: threadTS, ts: ts})
	return ts, nil
}

func (m *fakeMessenger) AddReaction(ctx context.Context, channel, ts, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added[ts] = append(m.added[ts], name)
	return nil
}

func (m *fakeMessenger) Reactions(ctx context.Context, channel, ts string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, name := range m.added[ts] {
		counts[name]++
	}
	for name, n := range m.scripted[m.indexOf(ts)] {
		counts[name] += n
	}
	return counts, nil
}

func (m *fakeMessenger) Replies(ctx context.Context, channel, threadTS string, limit int) ([]slack.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replies[m.indexOf(threadTS)], nil
}

func (m *fakeMessenger) History(ctx context.Context, channel string, oldest time.Time, limit int) ([]slack.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history, nil
}

// indexOf maps a timestamp back to the ordinal of the post that created it.
// Caller holds the lock.
func (m *fakeMessenger) indexOf(ts string) int {
	for i, p := range m.posts {
		if p.ts == ts {
			return i
		}
	}
	return -1
}

func (m *fakeMessenger) messageAt(i int) sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[i]
}

func (m *fakeMessenger) postCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies map[anthropic.Task]string
	errs    map[anthropic.Task]error
	calls   []anthropic.Task
}

func (g *fakeGenerator) Complete(ctx context.Context, task anthropic.Task, prompt string) (*anthropic.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, task)
	if err := g.errs[task]; err != nil {
		return nil, err
	}
	return &anthropic.Completion{Text: g.replies[task], Model: "test-model", CostUSD: 0.001}, nil
}

type publishedReply struct {
	inReplyTo string
	text      string
}

type fakePublisher struct {
	mu      sync.Mutex
	posts   []string
	replies []publishedReply
	texts   map[string]string
	postErr error
}

func (p *fakePublisher) CreatePost(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return "", p.postErr
	}
	p.posts = append(p.posts, text)
	return fmt.Sprintf("post-%d", len(p.posts)), nil
}

func (p *fakePublisher) CreateReply(ctx context.Context, inReplyTo, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, publishedReply{inReplyTo: inReplyTo, text: text})
	return fmt.Sprintf("reply-%d", len(p.replies)), nil
}

func (p *fakePublisher) PostText(ctx context.Context, postID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if text, ok := p.texts[postID]; ok {
		return text, nil
	}
	return "", errors.ErrNotFound
}

type fakeReader struct {
	accounts map[string]social.Account
	posts    map[string][]social.Post
}

func (r *fakeReader) ResolveHandles(ctx context.Context, handles []string) (map[string]social.Account, error) {
	return r.accounts, nil
}

func (r *fakeReader) RecentPosts(ctx context.Context, accountID string, limit int) ([]social.Post, error) {
	return r.posts[accountID], nil
}

type noMetrics struct{}

func (noMetrics) PostMetrics(ctx context.Context, postID string) (*social.Metrics, error) {
	return nil, errors.ErrNotFound
}

func testConfig() *am.Config {
	return &am.Config{
		Slack: am.SlackConfig{ChannelID: "C123"},
		Coach: am.CoachConfig{
			PollIntervalSeconds: 1,
			CardTimeoutMinutes:  1,
			DailyBudgetUSD:      0.50,
			CostPerDraftUSD:     0.04,
			Themes:              []string{"metrics", "build_in_public", "positioning", "technical", "hot_take"},
		},
		Schedule: am.ScheduleConfig{
			MorningHour: 7, MorningMinute: 30,
			AfternoonHour: 13,
			SummaryHour:   18,
			WeeklyWeekday: 0, WeeklyHour: 19,
			ScanHours:       []int{9, 12, 15},
			MetricsEveryMin: 30,
		},
		Creators: am.CreatorsConfig{Tier1: []string{"alice"}},
	}
}

func newTestCoach(t *testing.T, cfg *am.Config, fm *fakeMessenger, gen *fakeGenerator, pub *fakePublisher, reader scout.SocialReader) *Coach {
	t.Helper()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	log := zap.NewNop().Sugar()
	require.NoError(t, db.Migrate(database, log))

	js := journal.NewStore(database)
	ls := learn.NewStore(database, cfg.Coach.Themes, log)

	return New(Deps{
		Config:    cfg,
		Messenger: fm,
		Generator: gen,
		Publisher: pub,
		Scanner:   scout.NewScanner(reader, log),
		Reader:    reader,
		Ledger:    budget.NewLedger(database, cfg.Coach.DailyBudgetUSD, log),
		Learn:     ls,
		Journal:   js,
		Sampler:   metrics.NewSampler(database, js, noMetrics{}, ls, log),
		Logger:    log,
	})
}

func TestMorningSessionPublishesPickedOption(t *testing.T) {
	fm := newFakeMessenger()
	// with the primed self-reaction each scripted count clears the threshold
	fm.scripted[0] = map[string]int{"white_check_mark": 1} // approve the confirm stage
	fm.scripted[1] = map[string]int{"two": 1}              // pick option 2

	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskSuggest: "Here are today's options:\n- first option\n- second option\n- third option",
	}}
	pub := &fakePublisher{}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, &fakeReader{})

	require.NoError(t, coach.RunMorningSession(context.Background()))

	require.Equal(t, []string{"second option"}, pub.posts)

	// published post is journaled and findable by its platform id
	event, err := coach.journal.ByContentID(context.Background(), "post-1")
	require.NoError(t, err)
	require.Equal(t, journal.KindPost, event.Kind)

	// pick card carries the processed marker
	card := fm.messageAt(1)
	require.Contains(t, fm.added[card.ts], session.ProcessedMarker)

	// confirmation is threaded under the card
	last := fm.messageAt(fm.postCount() - 1)
	require.Equal(t, card.ts, last.threadTS)
	require.Contains(t, last.text, "Posted option 2")
}

func TestMorningSessionSkipPublishesNothing(t *testing.T) {
	fm := newFakeMessenger()
	fm.scripted[0] = map[string]int{"white_check_mark": 1}
	fm.scripted[1] = map[string]int{"thumbsdown": 1}

	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskSuggest: "- first\n- second\n- third",
	}}
	pub := &fakePublisher{}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, &fakeReader{})

	require.NoError(t, coach.RunMorningSession(context.Background()))
	require.Empty(t, pub.posts)
}

func TestMorningSessionDeclinedAtConfirm(t *testing.T) {
	fm := newFakeMessenger()
	fm.scripted[0] = map[string]int{"x": 1} // decline

	gen := &fakeGenerator{}
	pub := &fakePublisher{}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, &fakeReader{})

	require.NoError(t, coach.RunMorningSession(context.Background()))
	require.Empty(t, gen.calls, "declining the confirm stage must not generate")
	require.Empty(t, pub.posts)
}

func TestMorningSessionStopsWhenBudgetExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.Coach.DailyBudgetUSD = 0 // every charge refused

	fm := newFakeMessenger()
	fm.scripted[0] = map[string]int{"white_check_mark": 1}
	gen := &fakeGenerator{replies: map[anthropic.Task]string{}}
	pub := &fakePublisher{}
	coach := newTestCoach(t, cfg, fm, gen, pub, &fakeReader{})

	require.NoError(t, coach.RunMorningSession(context.Background()))

	require.Empty(t, gen.calls, "generation must not run once the budget refuses the charge")
	require.Empty(t, pub.posts)
	require.Equal(t, 2, fm.postCount())
	notice := fm.messageAt(1)
	require.Contains(t, notice.text, "Budget reached")
	require.Equal(t, fm.messageAt(0).ts, notice.threadTS, "pause notice is threaded under the confirm card")
}

func TestAfternoonSessionEditThenPost(t *testing.T) {
	fm := newFakeMessenger()
	fm.scripted[0] = map[string]int{"pencil2": 1} // edit on the first draft stage
	fm.scripted[1] = map[string]int{"+1": 1}      // post on the re-offered stage
	fm.replies[0] = []slack.Message{
		{TS: "500.001", Text: "edit 1: shipped the config watcher today"},
	}

	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskSuggest: "original draft text",
	}}
	pub := &fakePublisher{}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, &fakeReader{})

	require.NoError(t, coach.RunAfternoonSession(context.Background()))

	require.Equal(t, []string{"shipped the config watcher today"}, pub.posts)
	stage2 := fm.messageAt(1)
	require.Contains(t, fm.added[stage2.ts], session.ProcessedMarker)
}

func TestAfternoonSessionSkipPublishesNothing(t *testing.T) {
	fm := newFakeMessenger()
	fm.scripted[0] = map[string]int{"x": 1} // unprimed skip alias

	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskSuggest: "draft text",
	}}
	pub := &fakePublisher{}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, &fakeReader{})

	require.NoError(t, coach.RunAfternoonSession(context.Background()))
	require.Empty(t, pub.posts)
}

func scanFixtures() (*fakeReader, *fakePublisher) {
	reader := &fakeReader{
		accounts: map[string]social.Account{
			"alice": {ID: "u1", Username: "alice", Followers: 50000},
		},
		posts: map[string][]social.Post{
			"u1": {{
				ID:        "orig-1",
				Text:      "we just launched the new storage engine",
				CreatedAt: time.Now().Add(-10 * time.Minute),
				Metrics:   social.Metrics{Likes: 40, Replies: 3},
			}},
		},
	}
	pub := &fakePublisher{texts: map[string]string{
		"orig-1": "we just launched the new storage engine",
	}}
	return reader, pub
}

func TestScanDraftsSelectionAndPublishesOnReaction(t *testing.T) {
	reader, pub := scanFixtures()

	fm := newFakeMessenger()
	fm.replies[0] = []slack.Message{{TS: "500.001", Text: "create: 1"}}
	fm.scripted[2] = map[string]int{"thumbsup": 1} // 👍 on the posted draft

	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskReply: "congrats, how is cold-start latency holding up?",
	}}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, reader)

	require.NoError(t, coach.RunOpportunityScan(context.Background()))

	require.Len(t, pub.replies, 1)
	require.Equal(t, "orig-1", pub.replies[0].inReplyTo)
	require.Equal(t, "congrats, how is cold-start latency holding up?", pub.replies[0].text)

	// header, shortlist entry, draft, confirmation
	require.Equal(t, 4, fm.postCount())
	require.Contains(t, fm.messageAt(0).text, "create: 1,4,6")
	require.Contains(t, fm.messageAt(2).text, "@alice")
	draft := fm.messageAt(2)
	require.Contains(t, fm.added[draft.ts], session.ProcessedMarker)

	event, err := coach.journal.ByContentID(context.Background(), "reply-1")
	require.NoError(t, err)
	require.Equal(t, journal.KindReply, event.Kind)
	require.Equal(t, "orig-1", event.InReplyTo)
	require.Equal(t, "alice", event.TargetHandle)
}

func TestScanEditCommandRevisesBeforePost(t *testing.T) {
	reader, pub := scanFixtures()

	fm := newFakeMessenger()
	fm.replies[0] = []slack.Message{
		{TS: "500.001", Text: "create: 1"},
		{TS: "500.002", Text: "edit 1: sharper question about latency"},
		{TS: "500.003", Text: "post 1"},
	}

	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskReply: "first draft",
	}}
	coach := newTestCoach(t, testConfig(), fm, gen, pub, reader)

	require.NoError(t, coach.RunOpportunityScan(context.Background()))

	require.Len(t, pub.replies, 1)
	require.Equal(t, "sharper question about latency", pub.replies[0].text)
}

func TestScanWithEmptyWatchlistDoesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Creators = am.CreatorsConfig{}

	fm := newFakeMessenger()
	pub := &fakePublisher{}
	coach := newTestCoach(t, cfg, fm, &fakeGenerator{}, pub, &fakeReader{})

	require.NoError(t, coach.RunOpportunityScan(context.Background()))
	require.Zero(t, fm.postCount())
}

func TestScanUrgentAlertPostedToChannel(t *testing.T) {
	reader, pub := scanFixtures()
	reader.posts["u1"] = []social.Post{{
		ID:        "orig-2",
		Text:      "doing an AMA for the next hour, ask me anything",
		CreatedAt: time.Now().Add(-2 * time.Minute),
		Metrics:   social.Metrics{Likes: 10, Replies: 30},
	}}

	fm := newFakeMessenger()
	// no selection arrives; the run should still post the alert and shortlist
	cfg := testConfig()
	cfg.Coach.CardTimeoutMinutes = 0
	coach := newTestCoach(t, cfg, fm, &fakeGenerator{}, pub, reader)

	require.NoError(t, coach.RunOpportunityScan(context.Background()))

	require.Contains(t, fm.messageAt(0).text, "URGENT")
	require.Contains(t, fm.messageAt(0).text, "@alice")
	require.Empty(t, pub.replies)
}

func TestDailySummaryCountsAndBoostsTheme(t *testing.T) {
	fm := newFakeMessenger()
	fm.history = []slack.Message{
		{TS: "1.0", Text: Tag + " Suggestions for Aug 28"},
		{TS: "2.0", Text: "posted", Reactions: []slack.Reaction{{Name: session.ProcessedMarker, Count: 1}}},
		// tagged but not offers: must not inflate the offered count
		{TS: "3.0", Text: Tag + " URGENT: @bob is hosting an AMA"},
		{TS: "4.0", Text: Tag + " Budget reached; drafts paused for today."},
		{TS: "5.0", Text: Tag + " Posted option 2 (id post-8)."},
	}

	coach := newTestCoach(t, testConfig(), fm, &fakeGenerator{}, &fakePublisher{}, &fakeReader{})

	_, err := coach.journal.Record(context.Background(), journal.KindPost, "post-9", "", "",
		"metrics", "shipped 3 features this sprint", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	require.NoError(t, coach.RunDailySummary(context.Background()))

	last := fm.messageAt(fm.postCount() - 1)
	require.Contains(t, last.text, "Daily summary")
	require.Contains(t, last.text, "1 posts and 0 replies")
	require.Contains(t, last.text, "1 cards offered, 1 handled")
	require.Contains(t, last.text, "Theme boost: metrics")

	weights, err := coach.learn.ThemeWeights(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, weights["metrics"], "numeric post credits the metrics theme")
}

func TestWeeklyBriefFallsBackWhenGenerationFails(t *testing.T) {
	fm := newFakeMessenger()
	gen := &fakeGenerator{errs: map[anthropic.Task]error{
		anthropic.TaskWeekly: errors.New("api down"),
	}}
	coach := newTestCoach(t, testConfig(), fm, gen, &fakePublisher{}, &fakeReader{})

	require.NoError(t, coach.RunWeeklyBrief(context.Background()))

	last := fm.messageAt(fm.postCount() - 1)
	require.Contains(t, last.text, "Weekly brief")
	require.Contains(t, last.text, "0 posts, 0 replies")
}

func TestWeeklyBriefUsesGeneratedText(t *testing.T) {
	fm := newFakeMessenger()
	gen := &fakeGenerator{replies: map[anthropic.Task]string{
		anthropic.TaskWeekly: "strong week for technical threads",
	}}
	coach := newTestCoach(t, testConfig(), fm, gen, &fakePublisher{}, &fakeReader{})

	require.NoError(t, coach.RunWeeklyBrief(context.Background()))
	require.Contains(t, fm.messageAt(0).text, "strong week for technical threads")
}

func TestEntriesCoverConfiguredSchedule(t *testing.T) {
	coach := newTestCoach(t, testConfig(), newFakeMessenger(), &fakeGenerator{}, &fakePublisher{}, &fakeReader{})

	entries := coach.Entries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	require.ElementsMatch(t, []string{"suggest", "afternoon", "scan", "summary", "weekly", "metrics"}, names)

	// 2026-08-28 07:30 is a Friday morning
	morning := time.Date(2026, 8, 28, 7, 30, 0, 0, time.UTC)
	require.True(t, entries[0].When(morning))
	require.False(t, entries[1].When(morning))
}

func TestRunTaskUnknownNameIsNotFatal(t *testing.T) {
	coach := newTestCoach(t, testConfig(), newFakeMessenger(), &fakeGenerator{}, &fakePublisher{}, &fakeReader{})
	require.NoError(t, coach.RunTask(context.Background(), "nonsense"))
}

func TestRunMetricsSweepWithEmptyJournal(t *testing.T) {
	coach := newTestCoach(t, testConfig(), newFakeMessenger(), &fakeGenerator{}, &fakePublisher{}, &fakeReader{})
	require.NoError(t, coach.RunMetricsSweep(context.Background()))
}

func TestExtractOptions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"bullets", "intro line\n- alpha\n- beta\n- gamma\n- delta", []string{"alpha", "beta", "gamma"}},
		{"numbered", "1. alpha\n2) beta", []string{"alpha", "beta"}},
		{"quoted", `- "alpha"`, []string{"alpha"}},
		{"no list items", "just prose, nothing bulleted", nil},
		{"blank bullets skipped", "- \n- alpha", []string{"alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractOptions(tt.in, 3))
		})
	}
}

var _ Messenger = (*fakeMessenger)(nil)
var _ Publisher = (*fakePublisher)(nil)
var _ scout.SocialReader = (*fakeReader)(nil)
