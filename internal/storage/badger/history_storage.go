package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// HistoryStorage implements the HistoryStorage interface for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// StoreLoginEvent records a settled login attempt
func (s *HistoryStorage) StoreLoginEvent(ctx context.Context, event *models.LoginEvent) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("login event requires an ID")
	}

	if err := s.db.Store().Upsert(event.ID, event); err != nil {
		return fmt.Errorf("failed to store login event: %w", err)
	}

	s.logger.Debug().
		Str("event_id", event.ID).
		Str("status", string(event.Status)).
		Msg("Login event stored")
	return nil
}

// ListLoginEvents returns the most recent events, newest first. A limit of
// zero or less returns everything.
func (s *HistoryStorage) ListLoginEvents(ctx context.Context, limit int) ([]*models.LoginEvent, error) {
	var events []*models.LoginEvent
	if err := s.db.Store().Find(&events, nil); err != nil {
		return nil, fmt.Errorf("failed to list login events: %w", err)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].SettledAt.After(events[j].SettledAt)
	})

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// CountLoginEvents returns the total number of stored events
func (s *HistoryStorage) CountLoginEvents(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.LoginEvent{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count login events: %w", err)
	}
	return int(count), nil
}
