package jobs

import (
	"github.com/mimicryml/style-transfer/internal/interfaces"
)

const defaultGalleryLimit = 20

// Queries exposes the read-only views over the job store: single job
// status, per-session history and the gallery of recent completions.
// It never mutates a record.
type Queries struct {
	store interfaces.JobStore
}

// NewQueries creates the read facade
func NewQueries(store interfaces.JobStore) *Queries {
	return &Queries{store: store}
}

// Status returns the full job record, or interfaces.ErrNotFound.
func (q *Queries) Status(id string) (*interfaces.Job, error) {
	return q.store.Get(id)
}

// History returns the session's jobs newest first. An unknown session is
// not an error, it is an empty history.
func (q *Queries) History(sessionID string) ([]*interfaces.Job, error) {
	return q.store.ListBySession(sessionID)
}

// Gallery returns up to limit completed jobs newest first. Non-positive
// limits fall back to the default.
func (q *Queries) Gallery(limit int) ([]*interfaces.Job, error) {
	if limit <= 0 {
		limit = defaultGalleryLimit
	}
	return q.store.ListRecentCompleted(limit)
}
