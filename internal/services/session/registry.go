// -----------------------------------------------------------------------
// Session registry: process-wide slot for the current session record
// -----------------------------------------------------------------------

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// PartitionInvalidator wipes the isolated login partition's cookie store.
// Satisfied by the SSO window factory.
type PartitionInvalidator interface {
	ClearPartition(ctx context.Context) error
}

// Registry holds the current SessionRecord. It is the single source of truth
// read by outbound request construction; replaced wholesale on login, cleared
// wholesale on logout.
type Registry struct {
	mu        sync.RWMutex
	record    *models.SessionRecord
	partition PartitionInvalidator
	logger    arbor.ILogger
}

// NewRegistry creates an empty session registry. The partition invalidator
// may be nil in tests.
func NewRegistry(partition PartitionInvalidator, logger arbor.ILogger) *Registry {
	return &Registry{
		record:    &models.SessionRecord{},
		partition: partition,
		logger:    logger,
	}
}

var _ interfaces.SessionRegistry = (*Registry)(nil)

// Set replaces the record wholesale.
func (r *Registry) Set(record *models.SessionRecord) {
	if record == nil {
		record = &models.SessionRecord{}
	}

	r.mu.Lock()
	r.record = record
	r.mu.Unlock()

	r.logger.Info().
		Bool("has_token", record.Token != "").
		Bool("has_user_data", record.UserData != nil).
		Str("jsession_id", record.JSessionID).
		Msg("Session record replaced")
}

// Get returns a snapshot of the current record.
func (r *Registry) Get() *models.SessionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := *r.record
	return &snapshot
}

// Clear resets the record to empty defaults and invalidates the isolated
// partition's stored cookies, so a logout cannot be bypassed by cookie reuse.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.record = &models.SessionRecord{}
	r.mu.Unlock()

	if r.partition != nil {
		if err := r.partition.ClearPartition(ctx); err != nil {
			return fmt.Errorf("failed to clear login partition: %w", err)
		}
	}

	r.logger.Info().Msg("Session cleared")
	return nil
}
