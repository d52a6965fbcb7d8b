// Package herald defines the wire types returned by the publish pipeline API.
package herald

// PostError records the failure of a single post within a run
type PostError struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

// RunResult aggregates the outcome of one publish pipeline run.
// It is built fresh per invocation and never persisted.
type RunResult struct {
	ExpiredUpdated int         `json:"expired_updated"`
	Total          int         `json:"total"`
	Published      int         `json:"published"`
	Failed         int         `json:"failed"`
	Errors         []PostError `json:"errors"`
}

// ErrorResponse is the body returned for run-level failures
type ErrorResponse struct {
	Error string `json:"error"`
}
