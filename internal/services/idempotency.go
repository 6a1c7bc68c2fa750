package services

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/miele-backoffice/internal/repo"
)

// DefaultIdempotencyTTL is how long a remembered insert can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// LookupInsert finds the row created by an earlier POST with the same
// (user, table, key). It matches middleware.IdempotencyLookup.
func (s *TableService) LookupInsert(ctx context.Context, userID, table, key string, now time.Time) (string, int, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, table, key, now)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return "", 0, false, nil
	case err != nil:
		return "", 0, false, err
	}
	return rec.RecordID, rec.Status, true, nil
}

// RememberInsert stores the outcome of a POST so a retry with the same key
// replays it. A key already taken by a concurrent retry is not an error.
func (s *TableService) RememberInsert(ctx context.Context, userID, table, key, recordID string, status int) error {
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, table, key, recordID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// PurgeIdempotency drops expired keys and returns how many were removed.
func (s *TableService) PurgeIdempotency(ctx context.Context, now time.Time) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, now)
}
