// Package slack implements the subset of the Slack Web API the coach needs:
// posting messages, adding reactions, and reading channel history and
// thread replies.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/internal/httpclient"
)

// BaseURL is the Slack Web API endpoint
const BaseURL = "https://slack.com/api"

// Client is a Slack Web API client bound to a bot token
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Slack client with the given bot token
func NewClient(token string) *Client {
	blockPrivateIP := true
	saferClient := httpclient.NewWithOptions(30*time.Second, httpclient.Options{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		token:      token,
		baseURL:    BaseURL,
		httpClient: saferClient.Client,
	}
}

// Message is a channel message as returned by history and replies calls
type Message struct {
	Type      string     `json:"type"`
	User      string     `json:"user"`
	BotID     string     `json:"bot_id,omitempty"`
	Text      string     `json:"text"`
	TS        string     `json:"ts"`
	ThreadTS  string     `json:"thread_ts,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
}

// Reaction is an emoji reaction with its count
type Reaction struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

// ReactionCounts flattens the message reactions into name -> count
func (m *Message) ReactionCounts() map[string]int {
	counts := make(map[string]int, len(m.Reactions))
	for _, r := range m.Reactions {
		counts[r.Name] = r.Count
	}
	return counts
}

// apiResponse is the common envelope of every Slack Web API response
type apiResponse struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Channel  string    `json:"channel,omitempty"`
	TS       string    `json:"ts,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// PostMessage posts text to a channel. A non-empty threadTS posts into that
// thread instead of the channel root. Returns the timestamp of the new message.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	if c.token == "" {
		return "", errors.NewNotConfigured("slack.bot_token")
	}

	payload := map[string]string{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	resp, err := c.postJSON(ctx, "chat.postMessage", payload)
	if err != nil {
		return "", err
	}
	return resp.TS, nil
}

// AddReaction adds an emoji reaction to the message at ts
func (c *Client) AddReaction(ctx context.Context, channel, ts, name string) error {
	if c.token == "" {
		return errors.NewNotConfigured("slack.bot_token")
	}

	_, err := c.postJSON(ctx, "reactions.add", map[string]string{
		"channel":   channel,
		"timestamp": ts,
		"name":      name,
	})
	// already_reacted is success for our purposes
	if err != nil && errors.Is(err, errAlreadyReacted) {
		return nil
	}
	return err
}

// History returns channel messages newer than oldest (zero value = no floor),
// newest first, up to limit.
func (c *Client) History(ctx context.Context, channel string, oldest time.Time, limit int) ([]Message, error) {
	if c.token == "" {
		return nil, errors.NewNotConfigured("slack.bot_token")
	}

	params := url.Values{}
	params.Set("channel", channel)
	params.Set("limit", strconv.Itoa(limit))
	if !oldest.IsZero() {
		params.Set("oldest", formatTS(oldest))
	}

	resp, err := c.getForm(ctx, "conversations.history", params)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Replies returns the replies in a thread, excluding the parent message
func (c *Client) Replies(ctx context.Context, channel, threadTS string, limit int) ([]Message, error) {
	if c.token == "" {
		return nil, errors.NewNotConfigured("slack.bot_token")
	}

	params := url.Values{}
	params.Set("channel", channel)
	params.Set("ts", threadTS)
	params.Set("limit", strconv.Itoa(limit))

	resp, err := c.getForm(ctx, "conversations.replies", params)
	if err != nil {
		return nil, err
	}

	msgs := resp.Messages
	if len(msgs) > 0 && msgs[0].TS == threadTS {
		msgs = msgs[1:]
	}
	return msgs, nil
}

// Reactions returns the reaction counts on a single message by fetching it
// from history with an inclusive one-message window.
func (c *Client) Reactions(ctx context.Context, channel, ts string) (map[string]int, error) {
	if c.token == "" {
		return nil, errors.NewNotConfigured("slack.bot_token")
	}

	params := url.Values{}
	params.Set("channel", channel)
	params.Set("latest", ts)
	params.Set("oldest", ts)
	params.Set("inclusive", "true")
	params.Set("limit", "1")

	resp, err := c.getForm(ctx, "conversations.history", params)
	if err != nil {
		return nil, err
	}
	for _, m := range resp.Messages {
		if m.TS == ts {
			return m.ReactionCounts(), nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "message %s not in channel %s", ts, channel)
}

var errAlreadyReacted = errors.New("already_reacted")

func (c *Client) postJSON(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, method)
}

func (c *Client) getForm(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, method)
}

func (c *Client) do(req *http.Request, method string) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "slack %s request failed", method)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("slack %s returned status %d: %s", method, resp.StatusCode, string(respBody))
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal %s response", method)
	}

	if !api.OK {
		if api.Error == "already_reacted" {
			return &api, errAlreadyReacted
		}
		return nil, errors.Newf("slack %s error: %s", method, api.Error)
	}

	return &api, nil
}

// formatTS renders a time as a Slack message timestamp (seconds.micros)
func formatTS(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// SetHTTPClient allows overriding the HTTP client for testing
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetBaseURL allows overriding the API endpoint for testing
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}
