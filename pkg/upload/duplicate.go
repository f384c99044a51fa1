package upload

import (
	"context"
	"time"

	shared "github.com/stridelog/server/pkg"
	"github.com/stridelog/server/pkg/uploaderr"
)

// DuplicateChecker is the advisory pre-check for re-uploaded activities. The
// store's uniqueness constraint stays authoritative when two uploads race;
// this just saves the work of processing a file we already have.
type DuplicateChecker struct {
	DB shared.Database
}

// Exists reports whether an activity for (user, timestamp) is already stored.
// The timestamp is normalized to UTC seconds before querying so equal
// instants match regardless of their textual timezone. An unparsable
// timestamp fails with *uploaderr.ValidationError; "no row" is a normal false
// result, and any other query failure propagates as *uploaderr.StorageError.
func (d *DuplicateChecker) Exists(ctx context.Context, userID, rawTimestamp string) (bool, error) {
	t, err := time.Parse(time.RFC3339, rawTimestamp)
	if err != nil {
		return false, uploaderr.NewValidationError("timestamp", "cannot parse "+rawTimestamp)
	}
	return d.ExistsAt(ctx, userID, t)
}

// ExistsAt is Exists for callers that already hold a parsed instant.
func (d *DuplicateChecker) ExistsAt(ctx context.Context, userID string, t time.Time) (bool, error) {
	normalized := t.UTC().Truncate(time.Second)

	activity, err := d.DB.FindActivityByStart(ctx, userID, normalized)
	if err != nil {
		return false, uploaderr.NewStorageError("duplicate check", err)
	}
	return activity != nil, nil
}
