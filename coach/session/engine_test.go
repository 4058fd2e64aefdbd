package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/slack"
)

// fakeTransport scripts reaction counts per poll and records posted messages
type fakeTransport struct {
	mu        sync.Mutex
	posted    []postedMsg
	reactions []string         // reactions added by the engine
	script    []map[string]int // successive Reactions() results
	replies   map[string][]slack.Message
	polls     int
	nextTS    int
}

type postedMsg struct {
	text     string
	threadTS string
	ts       string
}

func (f *fakeTransport) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTS++
	ts := fmt.Sprintf("100.%03d", f.nextTS)
	f.posted = append(f.posted, postedMsg{text: text, threadTS: threadTS, ts: ts})
	return ts, nil
}

func (f *fakeTransport) AddReaction(ctx context.Context, channel, ts, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, name)
	return nil
}

func (f *fakeTransport) Reactions(ctx context.Context, channel, ts string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polls < len(f.script) {
		result := f.script[f.polls]
		f.polls++
		return result, nil
	}
	f.polls++
	return map[string]int{}, nil
}

func (f *fakeTransport) Replies(ctx context.Context, channel, threadTS string, limit int) ([]slack.Message, error) {
	return f.replies[threadTS], nil
}

func newTestEngine(transport *fakeTransport, timeout time.Duration) *Engine {
	return NewEngine(transport, Config{
		Channel:      "C123",
		PollInterval: time.Millisecond,
		CardTimeout:  timeout,
	}, zap.NewNop().Sugar())
}

func TestPostCardPrimesReactions(t *testing.T) {
	transport := &fakeTransport{}
	engine := newTestEngine(transport, time.Second)

	card := &Card{Index: 1, Total: 2, Title: "Morning suggestions", Body: "pick one"}
	card.Signals = PickSignals()
	if err := engine.PostCard(context.Background(), card); err != nil {
		t.Fatal(err)
	}

	if card.MessageTS == "" {
		t.Error("MessageTS should be set after posting")
	}
	if !strings.Contains(transport.posted[0].text, "[1/2]") {
		t.Errorf("card text missing stage counter: %q", transport.posted[0].text)
	}
	// One primed reaction per declared signal
	if len(transport.reactions) != len(card.Signals) {
		t.Errorf("primed %d reactions, want %d", len(transport.reactions), len(card.Signals))
	}
	if transport.reactions[0] != "one" {
		t.Errorf("first primed reaction = %s, want one", transport.reactions[0])
	}
}

func TestAwaitSignalResolvesAbovePrimeThreshold(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"one": 1, "two": 1, "three": 1}, // only our primes
			{"one": 1, "two": 2, "three": 1}, // operator clicked two
		},
	}
	engine := newTestEngine(transport, time.Second)

	card := &Card{Title: "pick"}
	card.Signals = PickSignals()
	card.Default = SignalSkip
	if err := engine.PostCard(context.Background(), card); err != nil {
		t.Fatal(err)
	}

	sig, err := engine.AwaitSignal(context.Background(), card)
	if err != nil {
		t.Fatal(err)
	}
	if sig != SignalOption2 {
		t.Errorf("signal = %s, want option2", sig)
	}
}

func TestAwaitSignalTimesOutToDefault(t *testing.T) {
	transport := &fakeTransport{}
	engine := newTestEngine(transport, 20*time.Millisecond)

	card := &Card{Title: "confirm"}
	card.Signals = ConfirmSignals()
	card.Default = SignalNo
	if err := engine.PostCard(context.Background(), card); err != nil {
		t.Fatal(err)
	}

	sig, err := engine.AwaitSignal(context.Background(), card)
	if err != nil {
		t.Fatal(err)
	}
	if sig != SignalNo {
		t.Errorf("timeout signal = %s, want default no", sig)
	}
}

func TestRunPickReturnsChosenOption(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"two": 2},
		},
	}
	engine := newTestEngine(transport, time.Second)

	choice, err := engine.RunPick(context.Background(), &Card{Title: "pick one"})
	if err != nil {
		t.Fatal(err)
	}
	if choice != 2 {
		t.Errorf("choice = %d, want 2", choice)
	}
}

func TestRunPickTimeoutReturnsZero(t *testing.T) {
	transport := &fakeTransport{}
	engine := newTestEngine(transport, 10*time.Millisecond)

	choice, err := engine.RunPick(context.Background(), &Card{Title: "pick one"})
	if err != nil {
		t.Fatal(err)
	}
	if choice != 0 {
		t.Errorf("choice = %d, want 0 on timeout", choice)
	}
}

func TestRunConfirm(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"white_check_mark": 2},
		},
	}
	engine := newTestEngine(transport, time.Second)

	ok, err := engine.RunConfirm(context.Background(), &Card{Title: "generate drafts?"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("white_check_mark should confirm")
	}
}

func TestRunDraftPostReturnsCurrentText(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"+1": 2},
		},
	}
	engine := newTestEngine(transport, time.Second)

	result, err := engine.RunDraft(context.Background(), &Card{Title: "draft"}, "the draft text", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != SignalPost {
		t.Errorf("action = %s, want post", result.Action)
	}
	if result.Text != "the draft text" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestRunDraftEditTakesFirstMatchingReply(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"pencil2": 2}, // first card: edit
			{"+1": 2},      // second card: post
		},
		replies: map[string][]slack.Message{
			"100.001": {
				{Text: "what about tone?"},              // not a command
				{Text: "edit 1: the first replacement"}, // first match wins
				{Text: "edit 1: a later replacement"},
			},
		},
	}
	engine := newTestEngine(transport, time.Second)

	result, err := engine.RunDraft(context.Background(), &Card{Title: "draft"}, "original", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != SignalPost {
		t.Fatalf("action = %s, want post", result.Action)
	}
	if result.Text != "the first replacement" {
		t.Errorf("text = %q, want first matching edit", result.Text)
	}
}

func TestRunDraftRegenerate(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"arrows_counterclockwise": 2}, // first card: regenerate
			{"+1": 2},                      // second card: post
		},
	}
	engine := newTestEngine(transport, time.Second)

	regen := func(ctx context.Context) (string, error) { return "regenerated text", nil }
	result, err := engine.RunDraft(context.Background(), &Card{Title: "draft"}, "original", regen)
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != SignalPost || result.Text != "regenerated text" {
		t.Errorf("result = %+v, want posted regenerated text", result)
	}
}

func TestRunDraftRegenerateFailureReportsAndSkips(t *testing.T) {
	transport := &fakeTransport{
		script: []map[string]int{
			{"arrows_counterclockwise": 2},
		},
	}
	engine := newTestEngine(transport, time.Second)

	regen := func(ctx context.Context) (string, error) { return "", errors.New("backend down") }
	result, err := engine.RunDraft(context.Background(), &Card{Title: "draft"}, "original", regen)
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != SignalSkip {
		t.Errorf("action = %s, want skip after failed regeneration", result.Action)
	}

	// Error must be visible in the thread
	var reported bool
	for _, m := range transport.posted {
		if m.threadTS != "" && strings.Contains(m.text, "backend down") {
			reported = true
		}
	}
	if !reported {
		t.Error("regeneration failure should be reported into the thread")
	}
}

func TestRunDraftTimeoutSkipsWithoutPublish(t *testing.T) {
	transport := &fakeTransport{}
	engine := newTestEngine(transport, 10*time.Millisecond)

	result, err := engine.RunDraft(context.Background(), &Card{Title: "draft"}, "original", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Action != SignalSkip || result.Text != "" {
		t.Errorf("result = %+v, want bare skip", result)
	}
}
