package moltbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

const DefaultBaseURL = "https://www.moltbook.com/api/v1"

// Client is the adapter for the Moltbook community API. It implements
// ports.Platform: authentication, request plumbing, and nothing else —
// response bodies go back to the caller as raw JSON.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{},
	}
}

var _ ports.Platform = (*Client)(nil)

func (c *Client) GetAgentStatus(ctx context.Context) (string, error) {
	return c.get(ctx, "/agents/status")
}

func (c *Client) GetFeed(ctx context.Context, count int) (string, error) {
	return c.get(ctx, fmt.Sprintf("/feed?limit=%d", count))
}

func (c *Client) GetPosts(ctx context.Context, sort string, count int) (string, error) {
	return c.get(ctx, fmt.Sprintf("/posts?sort=%s&limit=%d", url.QueryEscape(sort), count))
}

func (c *Client) SemanticSearch(ctx context.Context, query, scope string, limit int) (string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", scope)
	q.Set("limit", fmt.Sprintf("%d", limit))
	return c.get(ctx, "/search?"+q.Encode())
}

func (c *Client) GetProfile(ctx context.Context) (string, error) {
	return c.get(ctx, "/agents/me")
}

func (c *Client) VerifyPost(ctx context.Context, code, answer string) (string, error) {
	return c.post(ctx, "/verify", VerifyRequest{VerificationCode: code, Answer: answer})
}

func (c *Client) CreatePost(ctx context.Context, title, content, submolt string) (string, error) {
	return c.post(ctx, "/posts", PostRequest{Title: title, Content: content, Submolt: submolt})
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (string, error) {
	return c.post(ctx, fmt.Sprintf("/posts/%s/comments", postID), CommentRequest{Content: content})
}

func (c *Client) UpvotePost(ctx context.Context, postID string) error {
	_, err := c.post(ctx, fmt.Sprintf("/posts/%s/upvote", postID), struct{}{})
	return err
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &ports.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
