package handlers

import (
	"net/http"

	heraldapi "herald/pkg/api/herald"
	"herald/pkg/logging"
	"herald/pkg/middleware"
)

// TriggerPublish returns the handler for the cron trigger endpoint. The
// external scheduler is expected to deliver at-least-once; the runner's
// per-post claim makes redelivery safe.
func TriggerPublish(runner *Runner) middleware.HandlerFunc {
	return func(c middleware.Context) {
		result, err := runner.Run(c.Request.Context(), "http")
		if err != nil {
			logger.WithError(err).Error("Publish run failed")
			c.JSON(http.StatusInternalServerError, heraldapi.ErrorResponse{Error: "Publish run failed"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// GetQueueStatus reports how many posts sit in each lifecycle state
func GetQueueStatus(c middleware.Context) {
	rows, err := db.Query(`
		SELECT status, COUNT(*)
		FROM posts
		GROUP BY status
	`)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch queue status")
		c.JSON(http.StatusInternalServerError, heraldapi.ErrorResponse{Error: "Failed to fetch queue status"})
		return
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			logger.WithFields(logging.Fields{
				"error": err,
			}).Error("Error scanning queue status row")
			continue
		}
		counts[status] = count
	}

	c.JSON(http.StatusOK, middleware.H{"counts": counts})
}
