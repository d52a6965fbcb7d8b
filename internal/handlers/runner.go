package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"herald/internal/linkedin"
	heraldapi "herald/pkg/api/herald"
	"herald/pkg/config"
	"herald/pkg/logging"
	"herald/pkg/models"
)

// errNoLinkedInConnection is the per-post failure reason when the owning user
// has no usable LinkedIn credential
const errNoLinkedInConnection = "LinkedIn connection required"

// Publisher publishes one post to LinkedIn and returns the external post id.
// Implemented by linkedin.Client; tests substitute a fake.
type Publisher interface {
	PublishPost(ctx context.Context, params linkedin.PublishRequest) (string, error)
}

// Runner executes the scheduled-publish pipeline: expire stale posts, select
// due posts, attempt each one against LinkedIn, and record the outcome.
type Runner struct {
	db        *sql.DB
	logger    logging.Logger
	publisher Publisher
	metrics   *HeraldMetrics

	batchSize   int
	staleCutoff time.Duration
	interval    time.Duration

	stopCh chan struct{}

	// now is split out so tests can pin the clock
	now func() time.Time
}

// NewRunner creates a publish pipeline runner
func NewRunner(database *sql.DB, log logging.Logger, publisher Publisher, metrics *HeraldMetrics) *Runner {
	return &Runner{
		db:          database,
		logger:      log,
		publisher:   publisher,
		metrics:     metrics,
		batchSize:   config.GetEnvInt("PUBLISH_BATCH_SIZE", 50),
		staleCutoff: config.GetEnvDuration("PUBLISH_STALE_CUTOFF", 24*time.Hour),
		interval:    config.GetEnvDuration("PUBLISH_INTERVAL", 5*time.Minute),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

// Start runs the pipeline on a fixed interval until the context is cancelled.
// The HTTP trigger endpoint drives the same Run method, so an external
// scheduler and the internal ticker can coexist; the per-post claim keeps
// overlapping runs from double-publishing.
func (r *Runner) Start(ctx context.Context) {
	r.logger.WithField("interval", r.interval.String()).Info("Starting publish pipeline")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Publish pipeline stopping due to context cancellation")
			return
		case <-r.stopCh:
			r.logger.Info("Publish pipeline stopping")
			return
		case <-ticker.C:
			if _, err := r.Run(ctx, "ticker"); err != nil {
				r.logger.WithError(err).Error("Scheduled publish run failed")
			}
		}
	}
}

// Stop stops the interval loop
func (r *Runner) Stop() {
	close(r.stopCh)
}

// Run executes one full pipeline pass and returns the aggregate result.
// Errors before any per-post decision abort the run; per-post failures are
// captured in the result and never abort the batch.
func (r *Runner) Run(ctx context.Context, trigger string) (heraldapi.RunResult, error) {
	start := r.now()
	result := heraldapi.RunResult{Errors: []heraldapi.PostError{}}

	expired, err := r.expireStalePosts(ctx, start)
	if err != nil {
		r.countRun("error")
		return result, fmt.Errorf("failed to expire stale posts: %w", err)
	}
	result.ExpiredUpdated = expired
	if expired > 0 {
		r.logger.WithField("count", expired).Info("Expired stale scheduled posts")
	}
	r.countPosts("expired", expired)

	posts, err := r.fetchDuePosts(ctx, start)
	if err != nil {
		r.countRun("error")
		return result, fmt.Errorf("failed to fetch due posts: %w", err)
	}
	result.Total = len(posts)

	for _, post := range posts {
		outcome := r.publishOne(ctx, post)
		switch {
		case outcome.published:
			result.Published++
			r.countPosts("published", 1)
		case outcome.failed:
			result.Failed++
			result.Errors = append(result.Errors, heraldapi.PostError{PostID: post.ID, Error: outcome.reason})
			r.countPosts("failed", 1)
		default:
			// Claimed by an overlapping run; nothing to record
			r.countPosts("skipped", 1)
		}
	}

	r.countRun("ok")
	if r.metrics != nil {
		r.metrics.RunDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}

	r.logger.WithFields(logging.Fields{
		"trigger":         trigger,
		"expired_updated": result.ExpiredUpdated,
		"total":           result.Total,
		"published":       result.Published,
		"failed":          result.Failed,
	}).Info("Publish run completed")

	return result, nil
}

// expireStalePosts reconciles posts whose scheduling window lapsed past the
// stale cutoff. No LinkedIn call and no audit event; idempotent because the
// predicate only matches posts still in scheduled.
func (r *Runner) expireStalePosts(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-r.staleCutoff)

	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'scheduled'
		  AND scheduled_for < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// fetchDuePosts selects due posts earliest-first, bounded by the batch size,
// with each owner's LinkedIn credential joined in. Read-only.
func (r *Runner) fetchDuePosts(ctx context.Context, now time.Time) ([]models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.content, p.media_urls, p.scheduled_for,
		       COALESCE(a.access_token, ''), COALESCE(u.linkedin_urn, '')
		FROM posts p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN accounts a ON a.user_id = u.id AND a.provider = 'linkedin'
		WHERE p.status = 'scheduled'
		  AND p.scheduled_for <= $1
		ORDER BY p.scheduled_for ASC
		LIMIT $2
	`, now, r.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.ScheduledPost
	for rows.Next() {
		var post models.ScheduledPost
		var scheduledFor time.Time
		if err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.MediaURLs,
			&scheduledFor, &post.Credential.AccessToken, &post.Credential.PersonURN); err != nil {
			r.logger.WithError(err).Error("Failed to scan scheduled post")
			continue
		}
		post.Status = models.StatusScheduled
		post.ScheduledFor = &scheduledFor
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// outcome is the terminal result of processing one due post
type outcome struct {
	published bool
	failed    bool
	reason    string
}

// publishOne processes a single due post: claim, credential check, LinkedIn
// call, terminal transition and audit record. Any fault, including a panic,
// is contained here so the rest of the batch always runs.
func (r *Runner) publishOne(ctx context.Context, post models.ScheduledPost) (out outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			reason := fmt.Sprintf("unexpected failure: %v", rec)
			r.logger.WithFields(logging.Fields{
				"post_id": post.ID,
				"user_id": post.UserID,
				"panic":   rec,
			}).Error("Panic while publishing post")
			r.markFailed(ctx, post, reason)
			out = outcome{failed: true, reason: reason}
		}
	}()

	claimed, err := r.claimPost(ctx, post.ID)
	if err != nil {
		reason := fmt.Sprintf("failed to claim post: %v", err)
		r.logger.WithError(err).WithField("post_id", post.ID).Error("Failed to claim post")
		return outcome{failed: true, reason: reason}
	}
	if !claimed {
		// Another run already owns this post
		r.logger.WithField("post_id", post.ID).Debug("Post already claimed, skipping")
		return outcome{}
	}

	if !post.Credential.Valid() {
		r.markFailed(ctx, post, errNoLinkedInConnection)
		return outcome{failed: true, reason: errNoLinkedInConnection}
	}

	linkedInPostID, err := r.publisher.PublishPost(ctx, linkedin.PublishRequest{
		AccessToken: post.Credential.AccessToken,
		PersonURN:   post.Credential.PersonURN,
		Content:     post.Content,
		MediaURLs:   post.MediaURLs,
	})
	if err != nil {
		r.logger.WithError(err).WithFields(logging.Fields{
			"post_id": post.ID,
			"user_id": post.UserID,
		}).Error("Failed to publish post to LinkedIn")
		r.markFailed(ctx, post, err.Error())
		return outcome{failed: true, reason: err.Error()}
	}

	if err := r.markPublished(ctx, post, linkedInPostID); err != nil {
		// The post exists on LinkedIn but the local transition failed;
		// surface the inconsistency instead of retrying the external call
		reason := fmt.Sprintf("published externally but failed to record: %v", err)
		r.logger.WithError(err).WithFields(logging.Fields{
			"post_id":          post.ID,
			"linkedin_post_id": linkedInPostID,
		}).Error("Failed to record published post")
		r.markFailed(ctx, post, reason)
		return outcome{failed: true, reason: reason}
	}

	r.recordAudit(ctx, post)

	r.logger.WithFields(logging.Fields{
		"post_id":          post.ID,
		"user_id":          post.UserID,
		"linkedin_post_id": linkedInPostID,
	}).Info("Auto-published post")

	return outcome{published: true}
}

// claimPost atomically flips a post from scheduled to publishing. A false
// return means an overlapping run claimed it first.
func (r *Runner) claimPost(ctx context.Context, postID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'publishing', updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, postID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// markPublished records the terminal success transition
func (r *Runner) markPublished(ctx context.Context, post models.ScheduledPost, linkedInPostID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'published', published_at = NOW(), linkedin_post_id = $2,
		    failure_reason = NULL, updated_at = NOW()
		WHERE id = $1
	`, post.ID, linkedInPostID)
	return err
}

// markFailed records the terminal failure transition with its reason. A
// write failure here is logged and absorbed; the reason still reaches the
// run result.
func (r *Runner) markFailed(ctx context.Context, post models.ScheduledPost, reason string) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1
	`, post.ID, reason)
	if err != nil {
		r.logger.WithError(err).WithFields(logging.Fields{
			"post_id": post.ID,
			"reason":  reason,
		}).Error("Failed to mark post as failed")
	}
}

// recordAudit appends the post_published audit event. Audit failures are
// logged but never fail the post; the publish already happened.
func (r *Runner) recordAudit(ctx context.Context, post models.ScheduledPost) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, user_id, post_id, event_type, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, uuid.New().String(), post.UserID, post.ID, models.EventPostPublished)
	if err != nil {
		r.logger.WithError(err).WithFields(logging.Fields{
			"post_id": post.ID,
			"user_id": post.UserID,
		}).Warn("Failed to record audit event")
	}
}

func (r *Runner) countPosts(outcome string, n int) {
	if r.metrics == nil || n <= 0 {
		return
	}
	r.metrics.PostsProcessed.WithLabelValues(outcome).Add(float64(n))
}

func (r *Runner) countRun(status string) {
	if r.metrics == nil {
		return
	}
	r.metrics.Runs.WithLabelValues(status).Inc()
}
