package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// withContentionRetry runs op up to attempts times while it fails with
// ErrContention, waiting attempt*backoff between tries. Any other error is
// returned at once.
func withContentionRetry(ctx context.Context, attempts int, backoff time.Duration, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, ErrContention) || attempt == attempts {
			return err
		}

		logrus.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Debug("auction busy, retrying")

		timer := time.NewTimer(time.Duration(attempt) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}

	return err
}
