package auth

import (
	"errors"
	"os"
)

var (
	ErrMissingCronSecret = errors.New("cron secret not provided")
	ErrInvalidCronSecret = errors.New("invalid cron secret")
)

// ValidateCronSecret validates the shared secret presented by the scheduler
func ValidateCronSecret(secret string, expectedSecret string) error {
	if secret == "" {
		return ErrMissingCronSecret
	}

	if secret != expectedSecret {
		return ErrInvalidCronSecret
	}

	return nil
}

// GetCronSecret gets the cron secret from environment
func GetCronSecret() string {
	return os.Getenv("CRON_SECRET")
}
