package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/logger"
	"github.com/mimicryml/style-transfer/internal/metrics"
	"github.com/mimicryml/style-transfer/internal/styles"
)

// Manager accepts job submissions: it validates the style, assigns
// identity and persists the initial pending record. Execution is picked
// up by the worker pool independently of the submitter.
type Manager struct {
	store   interfaces.JobStore
	catalog *styles.Catalog
}

// NewManager creates a new job manager backed by the given store
func NewManager(store interfaces.JobStore, catalog *styles.Catalog) *Manager {
	return &Manager{
		store:   store,
		catalog: catalog,
	}
}

// Submit validates the submission and persists a new pending job.
// It returns as soon as the record is durable; the caller never waits
// for the transformation itself. A missing sessionID gets a generated
// one so history grouping always works.
func (m *Manager) Submit(sessionID, originalFilename, originalPath, styleName string) (*interfaces.Job, error) {
	if _, err := m.catalog.Resolve(styleName); err != nil {
		metrics.JobsRejectedTotal.Inc()
		return nil, err
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	job := &interfaces.Job{
		ID:               uuid.New().String(),
		SessionID:        sessionID,
		OriginalFilename: originalFilename,
		OriginalPath:     originalPath,
		StyleName:        styleName,
		Status:           interfaces.StatusPending,
		CreatedAt:        time.Now(),
	}

	if err := m.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	metrics.JobsSubmittedTotal.Inc()
	log := logger.WithJobID(job.ID)
	log.Info().Str("style", job.StyleName).Str("session_id", job.SessionID).Msg("Job submitted")
	return job, nil
}
