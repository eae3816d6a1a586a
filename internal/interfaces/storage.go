package interfaces

import (
	"context"

	"github.com/ternarybob/aditus/internal/models"
)

// HistoryStorage persists settled login attempts.
type HistoryStorage interface {
	// StoreLoginEvent records a settled attempt.
	StoreLoginEvent(ctx context.Context, event *models.LoginEvent) error

	// ListLoginEvents returns the most recent events, newest first.
	ListLoginEvents(ctx context.Context, limit int) ([]*models.LoginEvent, error)

	// CountLoginEvents returns the total number of stored events.
	CountLoginEvents(ctx context.Context) (int, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	HistoryStorage() HistoryStorage
	KeyValueStorage() KeyValueStorage

	// Close closes the underlying database
	Close() error
}
