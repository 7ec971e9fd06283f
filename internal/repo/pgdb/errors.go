package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-bidding-api/internal/repo/repo_errors"

	"github.com/lib/pq"
)

// postgres error codes that mean "someone else holds the auction row"
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repo_errors.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repo_errors.ErrContention, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", repo_errors.ErrContention, err)
		}
	}

	return err
}
