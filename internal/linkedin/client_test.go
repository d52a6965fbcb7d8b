package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient creates a client without an executor so tests use the direct
// client.Do path. This avoids retry policies wrapping errors as ExceededError.
func newTestClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.baseURL != defaultBaseURL {
		t.Fatalf("expected baseURL %s, got %s", defaultBaseURL, c.baseURL)
	}
	if c.client == nil {
		t.Fatal("expected non-nil HTTP client")
	}
	if c.httpExecutor == nil {
		t.Fatal("expected non-nil httpExecutor")
	}
	if c.shouldRetry == nil {
		t.Fatal("expected non-nil shouldRetry")
	}
}

func TestWithBaseURLOption(t *testing.T) {
	c := NewClient(WithBaseURL("http://localhost:9999"))
	if c.baseURL != "http://localhost:9999" {
		t.Fatalf("expected overridden baseURL, got %s", c.baseURL)
	}
}

func TestWithHTTPClientNilIgnored(t *testing.T) {
	c := NewClient(WithHTTPClient(nil))
	if c.client == nil {
		t.Fatal("nil client should not replace default")
	}
}

func TestPublishPostSuccess(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotProto string
	var gotBody ugcPostRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotProto = r.Header.Get("X-Restli-Protocol-Version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ugcPostResponse{ID: "urn:li:ugcPost:ext-123"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	id, err := c.PublishPost(context.Background(), PublishRequest{
		AccessToken: "tok-1",
		PersonURN:   "urn:li:person:abc",
		Content:     "hello world",
	})
	if err != nil {
		t.Fatalf("PublishPost returned error: %v", err)
	}
	if id != "urn:li:ugcPost:ext-123" {
		t.Fatalf("expected post id urn:li:ugcPost:ext-123, got %s", id)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/v2/ugcPosts" {
		t.Fatalf("expected /v2/ugcPosts, got %s", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotProto != "2.0.0" {
		t.Fatalf("unexpected protocol header: %s", gotProto)
	}
	if gotBody.Author != "urn:li:person:abc" {
		t.Fatalf("unexpected author: %s", gotBody.Author)
	}
	content := gotBody.SpecificContent["com.linkedin.ugc.ShareContent"]
	if content.ShareCommentary.Text != "hello world" {
		t.Fatalf("unexpected commentary: %s", content.ShareCommentary.Text)
	}
	if content.ShareMediaCategory != "NONE" {
		t.Fatalf("expected NONE media category, got %s", content.ShareMediaCategory)
	}
}

func TestPublishPostWithMedia(t *testing.T) {
	var gotBody ugcPostRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("X-RestLi-Id", "urn:li:ugcPost:media-1")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	id, err := c.PublishPost(context.Background(), PublishRequest{
		AccessToken: "tok",
		PersonURN:   "urn:li:person:abc",
		Content:     "with media",
		MediaURLs:   []string{"https://cdn.example.com/a.png"},
	})
	if err != nil {
		t.Fatalf("PublishPost returned error: %v", err)
	}
	if id != "urn:li:ugcPost:media-1" {
		t.Fatalf("expected id from X-RestLi-Id header, got %s", id)
	}

	content := gotBody.SpecificContent["com.linkedin.ugc.ShareContent"]
	if content.ShareMediaCategory != "ARTICLE" {
		t.Fatalf("expected ARTICLE media category, got %s", content.ShareMediaCategory)
	}
	if len(content.Media) != 1 || content.Media[0].OriginalURL != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected media payload: %+v", content.Media)
	}
}

func TestPublishPostAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid access token"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.PublishPost(context.Background(), PublishRequest{
		AccessToken: "expired",
		PersonURN:   "urn:li:person:abc",
		Content:     "x",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Invalid access token" {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}
}

func TestPublishPostMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.PublishPost(context.Background(), PublishRequest{
		AccessToken: "tok",
		PersonURN:   "urn:li:person:abc",
		Content:     "x",
	})
	if err == nil {
		t.Fatal("expected error for missing post id")
	}
}
