// Package social implements the X API v2 surface the coach needs: publishing
// posts and replies, resolving watched accounts, pulling their recent posts,
// and fetching engagement metrics.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/internal/httpclient"
)

// BaseURL is the X API v2 endpoint
const BaseURL = "https://api.twitter.com/2"

// MaxPostLength is the hard platform limit; longer drafts are truncated
const MaxPostLength = 280

// Client is an X API v2 client. All requests pass through a client-side
// rate limiter so scan sweeps cannot trip platform limits.
type Client struct {
	bearerToken string
	userToken   string // OAuth user context token, required for writes
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// Config holds the social client credentials
type Config struct {
	BearerToken       string
	AccessToken       string
	RequestsPerMinute int
}

// NewClient creates an X client with the given credentials
func NewClient(config Config) *Client {
	rpm := config.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	blockPrivateIP := true
	saferClient := httpclient.NewWithOptions(30*time.Second, httpclient.Options{
		BlockPrivateIP: &blockPrivateIP,
	})

	return &Client{
		bearerToken: config.BearerToken,
		userToken:   config.AccessToken,
		baseURL:     BaseURL,
		httpClient:  saferClient.Client,
		limiter:     rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
	}
}

// Post is a published post with its engagement metrics
type Post struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Metrics   Metrics
}

// Metrics holds the public engagement counters of a post
type Metrics struct {
	Likes   int `json:"like_count"`
	Reposts int `json:"retweet_count"`
	Replies int `json:"reply_count"`
	Quotes  int `json:"quote_count"`
}

// Account is a resolved platform account
type Account struct {
	ID        string
	Username  string
	Followers int
}

// CreatePost publishes text as a new post, truncated to the platform limit.
// Returns the new post ID.
func (c *Client) CreatePost(ctx context.Context, text string) (string, error) {
	return c.createTweet(ctx, Truncate(text), "")
}

// CreateReply publishes text as a reply to the given post
func (c *Client) CreateReply(ctx context.Context, inReplyTo, text string) (string, error) {
	return c.createTweet(ctx, Truncate(text), inReplyTo)
}

func (c *Client) createTweet(ctx context.Context, text, inReplyTo string) (string, error) {
	if c.userToken == "" {
		return "", errors.NewNotConfigured("x.access_token")
	}

	payload := map[string]any{"text": text}
	if inReplyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": inReplyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal post payload")
	}

	respBody, err := c.do(ctx, "POST", "/tweets", nil, bytes.NewReader(body), c.userToken)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal create response")
	}
	if resp.Data.ID == "" {
		return "", errors.New("create returned no post id")
	}
	return resp.Data.ID, nil
}

// PostMetrics fetches the current public metrics for a single post
func (c *Client) PostMetrics(ctx context.Context, postID string) (*Metrics, error) {
	params := url.Values{}
	params.Set("tweet.fields", "public_metrics")

	respBody, err := c.do(ctx, "GET", "/tweets/"+postID, params, nil, c.bearerToken)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			PublicMetrics Metrics `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metrics response")
	}
	return &resp.Data.PublicMetrics, nil
}

// PostText fetches the text of a single post
func (c *Client) PostText(ctx context.Context, postID string) (string, error) {
	respBody, err := c.do(ctx, "GET", "/tweets/"+postID, nil, nil, c.bearerToken)
	if err != nil {
		return "", err
	}

	var resp struct {
		Data struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal post response")
	}
	return resp.Data.Text, nil
}

// ResolveHandles looks up accounts by username, returning follower counts.
// Unknown handles are silently absent from the result.
func (c *Client) ResolveHandles(ctx context.Context, handles []string) (map[string]Account, error) {
	if len(handles) == 0 {
		return map[string]Account{}, nil
	}

	params := url.Values{}
	params.Set("usernames", strings.Join(handles, ","))
	params.Set("user.fields", "public_metrics")

	respBody, err := c.do(ctx, "GET", "/users/by", params, nil, c.bearerToken)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			PublicMetrics struct {
				Followers int `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal users response")
	}

	accounts := make(map[string]Account, len(resp.Data))
	for _, u := range resp.Data {
		key := strings.ToLower(u.Username)
		accounts[key] = Account{
			ID:        u.ID,
			Username:  u.Username,
			Followers: u.PublicMetrics.Followers,
		}
	}
	return accounts, nil
}

// RecentPosts returns the most recent posts of an account, newest first
func (c *Client) RecentPosts(ctx context.Context, accountID string, limit int) ([]Post, error) {
	if limit < 5 {
		limit = 5 // API minimum for max_results
	}

	if limit > 100 {
		limit = 100 // API maximum for max_results
	}

	params := url.Values{}
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("tweet.fields", "created_at,public_metrics")

	respBody, err := c.do(ctx, "GET", "/users/"+accountID+"/tweets", params, nil, c.bearerToken)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics Metrics   `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal timeline response")
	}

	posts := make([]Post, 0, len(resp.Data))
	for _, tw := range resp.Data {
		posts = append(posts, Post{
			ID:        tw.ID,
			Text:      tw.Text,
			CreatedAt: tw.CreatedAt,
			Metrics:   tw.PublicMetrics,
		})
	}
	return posts, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, token string) ([]byte, error) {
	if token == "" {
		return nil, errors.NewNotConfigured("x.bearer_token")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter interrupted")
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "x %s %s failed", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(errors.ErrNotFound, "x %s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Newf("x %s %s returned status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// Truncate clamps text to the platform limit, counting runes not bytes
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxPostLength {
		return text
	}
	return string(runes[:MaxPostLength])
}

// SetHTTPClient allows overriding the HTTP client for testing
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetBaseURL allows overriding the API endpoint for testing
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}
