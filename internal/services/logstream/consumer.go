// -----------------------------------------------------------------------
// Log streaming
//
// Consumes log batches from arbor's context channel and republishes the
// interesting ones on the event bus so the UI log pane updates live.
// -----------------------------------------------------------------------

package logstream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/phuslu/log"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"
)

// Consumer drains arbor log batches and publishes them as UI events.
type Consumer struct {
	events   interfaces.EventService
	logger   arbor.ILogger
	channel  chan []arbormodels.LogEvent
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	minLevel arbor.LogLevel
}

// NewConsumer creates a log consumer. minLevel is the lowest level that
// gets pushed to the UI ("debug", "info", "warn", "error").
func NewConsumer(events interfaces.EventService, logger arbor.ILogger, minLevel string) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		events:   events,
		logger:   logger,
		channel:  make(chan []arbormodels.LogEvent, 10),
		ctx:      ctx,
		cancel:   cancel,
		minLevel: parseLogLevel(minLevel),
	}
}

// GetChannel returns the channel for arbor to send log batches to.
func (c *Consumer) GetChannel() chan []arbormodels.LogEvent {
	return c.channel
}

// Start launches the consumer goroutine.
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go c.consume()
	return nil
}

// Stop drains the consumer and waits for it to exit.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *Consumer) consume() {
	defer c.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Log consumer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-c.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				if !c.shouldPublish(event.Level) {
					continue
				}
				// Chatty plumbing messages would drown the log pane.
				if event.Message == "HTTP request" ||
					strings.Contains(event.Message, "WebSocket client") {
					continue
				}
				entry := transformEvent(event)
				if err := c.events.Publish(c.ctx, interfaces.Event{
					Type:    interfaces.EventLogEntry,
					Payload: entry,
				}); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to publish log event")
				}
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) shouldPublish(level log.Level) bool {
	return arborlevels.FromLogLevel(level) >= c.minLevel
}

// parseLogLevel converts string log level to arbor.LogLevel
func parseLogLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// convertTo3Letter converts full level names to 3-letter codes
func convertTo3Letter(level string) string {
	switch strings.ToUpper(level) {
	case "INFO":
		return "INF"
	case "WARN", "WARNING":
		return "WRN"
	case "ERROR":
		return "ERR"
	case "DEBUG":
		return "DBG"
	default:
		if len(level) == 3 {
			return strings.ToUpper(level)
		}
		return "INF"
	}
}

// transformEvent converts an arbor LogEvent to the UI display format,
// folding structured fields into the message text.
func transformEvent(event arbormodels.LogEvent) models.LogEntry {
	message := event.Message
	for key, value := range event.Fields {
		message += fmt.Sprintf(" %s=%v", key, value)
	}

	return models.LogEntry{
		Timestamp: event.Timestamp.Format("15:04:05"),
		Level:     convertTo3Letter(event.Level.String()),
		Message:   message,
	}
}
