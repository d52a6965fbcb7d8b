package models

import (
	"time"

	"github.com/lib/pq"
)

// PostStatus is the lifecycle state of a scheduled post
type PostStatus string

const (
	// StatusDraft is authored content that has not been scheduled yet.
	// Draft posts are never selected by the publish pipeline.
	StatusDraft PostStatus = "draft"

	// StatusScheduled is a post awaiting publication at scheduled_for
	StatusScheduled PostStatus = "scheduled"

	// StatusPublishing marks a post claimed by a run. The claim prevents an
	// overlapping run from publishing the same post twice.
	StatusPublishing PostStatus = "publishing"

	// StatusPublished is terminal: the post exists on LinkedIn
	StatusPublished PostStatus = "published"

	// StatusFailed is terminal: the publish attempt failed. Re-publication
	// requires an explicit reset to scheduled outside the pipeline.
	StatusFailed PostStatus = "failed"

	// StatusExpired is terminal: the scheduling window lapsed without an
	// attempt and the post was reconciled without calling LinkedIn
	StatusExpired PostStatus = "expired"
)

// Terminal reports whether no further pipeline transition can leave s
func (s PostStatus) Terminal() bool {
	switch s {
	case StatusPublished, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// ScheduledPost represents one unit of content awaiting publication
type ScheduledPost struct {
	ID            string         `json:"id" db:"id"`
	UserID        string         `json:"user_id" db:"user_id"`
	Content       string         `json:"content" db:"content"`
	MediaURLs     pq.StringArray `json:"media_urls" db:"media_urls"`
	Status        PostStatus     `json:"status" db:"status"`
	ScheduledFor  *time.Time     `json:"scheduled_for,omitempty" db:"scheduled_for"`
	PublishedAt   *time.Time     `json:"published_at,omitempty" db:"published_at"`
	LinkedInID    *string        `json:"linkedin_post_id,omitempty" db:"linkedin_post_id"`
	FailureReason *string        `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`

	// Credential joined from the owner's linked account; empty fields mean
	// the user has no usable LinkedIn connection
	Credential PublishCredential `json:"-" db:"-"`
}

// PublishCredential is the subset of a user's LinkedIn account linkage
// needed to publish on their behalf
type PublishCredential struct {
	AccessToken string
	PersonURN   string
}

// Valid reports whether the credential can be used for a publish attempt
func (c PublishCredential) Valid() bool {
	return c.AccessToken != "" && c.PersonURN != ""
}

// AuditEvent is an immutable record of a significant pipeline outcome
type AuditEvent struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	PostID    string    `json:"post_id" db:"post_id"`
	EventType string    `json:"event_type" db:"event_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EventPostPublished is the audit event type written once per successful publish
const EventPostPublished = "post_published"
