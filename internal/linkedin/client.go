// Package linkedin wraps the LinkedIn UGC posts API. The client performs
// exactly one publish call per invocation and never touches local state;
// outcome handling belongs to the pipeline.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"herald/pkg/clients"
)

const defaultBaseURL = "https://api.linkedin.com"

// APIError is returned when LinkedIn rejects a request. It carries the HTTP
// status for machine handling and LinkedIn's message for humans.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("linkedin returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("linkedin returned status %d", e.StatusCode)
}

type Client struct {
	baseURL      string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
}

type Option func(*Client)

func NewClient(opts ...Option) *Client {
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL:      defaultBaseURL,
		client:       &http.Client{Timeout: 30 * time.Second, Transport: clients.DefaultTransport()},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL overrides the API base URL, mainly for tests
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func WithHTTPExecutorConfig(cfg clients.HTTPExecutorConfig) Option {
	return func(c *Client) {
		c.httpExecutor = clients.NewHTTPExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

// PublishRequest carries everything needed for one publish call
type PublishRequest struct {
	AccessToken string
	PersonURN   string
	Content     string
	MediaURLs   []string
}

type shareText struct {
	Text string `json:"text"`
}

type shareMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

type shareContent struct {
	ShareCommentary    shareText    `json:"shareCommentary"`
	ShareMediaCategory string       `json:"shareMediaCategory"`
	Media              []shareMedia `json:"media,omitempty"`
}

type ugcPostRequest struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

type apiErrorResponse struct {
	Message string `json:"message"`
}

// PublishPost creates a UGC post on behalf of the credential's owner and
// returns the LinkedIn post id
func (c *Client) PublishPost(ctx context.Context, params PublishRequest) (string, error) {
	mediaCategory := "NONE"
	var media []shareMedia
	if len(params.MediaURLs) > 0 {
		mediaCategory = "ARTICLE"
		for _, u := range params.MediaURLs {
			media = append(media, shareMedia{Status: "READY", OriginalURL: u})
		}
	}

	reqBody := ugcPostRequest{
		Author:         params.PersonURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]shareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    shareText{Text: params.Content},
				ShareMediaCategory: mediaCategory,
				Media:              media,
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/ugcPosts", c.baseURL)
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+params.AccessToken)
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read publish response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody apiErrorResponse
		if jsonErr := json.Unmarshal(body, &errBody); jsonErr == nil {
			apiErr.Message = errBody.Message
		}
		return "", apiErr
	}

	// LinkedIn returns the post id in the body and mirrors it in the
	// X-RestLi-Id header
	var created ugcPostResponse
	if err := json.Unmarshal(body, &created); err == nil && created.ID != "" {
		return created.ID, nil
	}
	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}

	return "", fmt.Errorf("linkedin response missing post id")
}
