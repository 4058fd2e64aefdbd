package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Config{
		BearerToken:       "bearer",
		AccessToken:       "user-token",
		RequestsPerMinute: 6000, // effectively unlimited for tests
	})
	client.SetHTTPClient(server.Client())
	client.SetBaseURL(server.URL)
	return client, server
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short"); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}

	long := strings.Repeat("a", 300)
	if got := Truncate(long); len([]rune(got)) != MaxPostLength {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), MaxPostLength)
	}

	// Rune-aware: 300 multibyte chars clamp to 280 runes, not 280 bytes
	emoji := strings.Repeat("é", 300)
	if got := Truncate(emoji); len([]rune(got)) != MaxPostLength {
		t.Errorf("multibyte truncated rune length = %d, want %d", len([]rune(got)), MaxPostLength)
	}
}

func TestCreatePostTruncatesAndReturnsID(t *testing.T) {
	var payload map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets" || r.Method != "POST" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "111"}})
	})
	defer server.Close()

	id, err := client.CreatePost(context.Background(), strings.Repeat("x", 400))
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if id != "111" {
		t.Errorf("id = %q", id)
	}
	text, _ := payload["text"].(string)
	if len([]rune(text)) != MaxPostLength {
		t.Errorf("sent text length = %d, want %d", len([]rune(text)), MaxPostLength)
	}
	if _, hasReply := payload["reply"]; hasReply {
		t.Error("root post should not carry reply block")
	}
}

func TestCreateReplySetsInReplyTo(t *testing.T) {
	var payload map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "222"}})
	})
	defer server.Close()

	id, err := client.CreateReply(context.Background(), "999", "nice post")
	if err != nil {
		t.Fatal(err)
	}
	if id != "222" {
		t.Errorf("id = %q", id)
	}
	reply, ok := payload["reply"].(map[string]any)
	if !ok || reply["in_reply_to_tweet_id"] != "999" {
		t.Errorf("reply block = %v", payload["reply"])
	}
}

func TestPostMetrics(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "public_metrics") {
			t.Errorf("missing tweet.fields param: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"public_metrics": map[string]int{
					"like_count":    7,
					"retweet_count": 2,
					"reply_count":   3,
					"quote_count":   1,
				},
			},
		})
	})
	defer server.Close()

	m, err := client.PostMetrics(context.Background(), "111")
	if err != nil {
		t.Fatal(err)
	}
	if m.Likes != 7 || m.Reposts != 2 || m.Replies != 3 || m.Quotes != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestResolveHandlesLowercasesKeys(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "10", "username": "BigName", "public_metrics": map[string]int{"followers_count": 50000}},
			},
		})
	})
	defer server.Close()

	accounts, err := client.ResolveHandles(context.Background(), []string{"bigname"})
	if err != nil {
		t.Fatal(err)
	}
	acct, ok := accounts["bigname"]
	if !ok {
		t.Fatalf("account not keyed by lowercase handle: %v", accounts)
	}
	if acct.Followers != 50000 {
		t.Errorf("followers = %d", acct.Followers)
	}
}

func TestResolveHandlesEmpty(t *testing.T) {
	client := NewClient(Config{BearerToken: "b"})
	accounts, err := client.ResolveHandles(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected empty map, got %v", accounts)
	}
}

func TestWriteWithoutUserToken(t *testing.T) {
	client := NewClient(Config{BearerToken: "bearer-only"})
	if _, err := client.CreatePost(context.Background(), "hi"); err == nil {
		t.Error("expected not-configured error for writes without user token")
	}
}
