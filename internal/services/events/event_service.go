// -----------------------------------------------------------------------
// Event bus
//
// In-process pub/sub connecting the login orchestrator, keepalive probe
// and log stream to the WebSocket hub.
// -----------------------------------------------------------------------

package events

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

type Service struct {
	mu       sync.RWMutex
	handlers map[interfaces.EventType][]interfaces.EventHandler
	logger   arbor.ILogger
}

func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		handlers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	s.handlers[eventType] = append(s.handlers[eventType], handler)
	count := len(s.handlers[eventType])
	s.mu.Unlock()

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", count).
		Msg("Event handler subscribed")

	return nil
}

// Unsubscribe removes a previously registered handler.
func (s *Service) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	target := reflect.ValueOf(handler).Pointer()

	s.mu.Lock()
	defer s.mu.Unlock()

	registered := s.handlers[eventType]
	for i, h := range registered {
		if reflect.ValueOf(h).Pointer() == target {
			s.handlers[eventType] = append(registered[:i], registered[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("handler not found for event type: %s", eventType)
}

func (s *Service) snapshot(eventType interfaces.EventType) []interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[eventType]
}

func (s *Service) invoke(ctx context.Context, handler interfaces.EventHandler, event interfaces.Event) error {
	err := handler(ctx, event)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Event handler failed")
	}
	return err
}

// Publish delivers the event to each subscriber on its own goroutine and
// returns immediately. Handler errors are logged, not returned.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	handlers := s.snapshot(event.Type)
	for _, handler := range handlers {
		go s.invoke(ctx, handler, event)
	}
	return nil
}

// PublishSync delivers the event to every subscriber and waits for all of
// them, reporting how many failed.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers := s.snapshot(event.Type)
	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	failures := make(chan error, len(handlers))

	for _, handler := range handlers {
		wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer wg.Done()
			if err := s.invoke(ctx, h, event); err != nil {
				failures <- err
			}
		}(handler)
	}

	wg.Wait()
	close(failures)

	failed := 0
	for range failures {
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("event handlers failed: %d errors", failed)
	}

	return nil
}

// Close drops every subscription.
func (s *Service) Close() error {
	s.mu.Lock()
	s.handlers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.mu.Unlock()

	s.logger.Info().Msg("Event service closed")
	return nil
}
