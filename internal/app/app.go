// -----------------------------------------------------------------------
// Application wiring
//
// Builds every service in dependency order and owns their lifecycles. The
// HTTP server receives the finished App and only routes into it.
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/aditus/internal/common"
	"github.com/ternarybob/aditus/internal/handlers"
	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/services/credstore"
	"github.com/ternarybob/aditus/internal/services/dispatch"
	"github.com/ternarybob/aditus/internal/services/events"
	"github.com/ternarybob/aditus/internal/services/exchange"
	"github.com/ternarybob/aditus/internal/services/keepalive"
	"github.com/ternarybob/aditus/internal/services/logstream"
	"github.com/ternarybob/aditus/internal/services/session"
	"github.com/ternarybob/aditus/internal/services/sso"
	"github.com/ternarybob/aditus/internal/services/units"
	"github.com/ternarybob/aditus/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// App holds all wired services and handlers.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService

	CredentialStore interfaces.CredentialStore
	SessionRegistry interfaces.SessionRegistry
	Exchanger       interfaces.TicketExchanger
	WindowFactory   interfaces.WindowFactory
	Orchestrator    interfaces.LoginOrchestrator
	Dispatcher      interfaces.Dispatcher
	UnitService     interfaces.UnitService
	Keepalive       *keepalive.Service
	LogConsumer     *logstream.Consumer

	// Handlers
	APIHandler      *handlers.APIHandler
	SSOHandler      *handlers.SSOHandler
	ConfigHandler   *handlers.ConfigHandler
	SessionHandler  *handlers.SessionHandler
	HistoryHandler  *handlers.HistoryHandler
	DispatchHandler *handlers.DispatchHandler
	UnitsHandler    *handlers.UnitsHandler
	KVHandler       *handlers.KVHandler
	WSHandler       *handlers.WebSocketHandler
}

func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)

	logConsumer := logstream.NewConsumer(app.EventService, logger, cfg.WebSocket.MinLevel)
	if err := logConsumer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start log consumer: %w", err)
	}
	app.LogConsumer = logConsumer
	logger.SetChannel("context", logConsumer.GetChannel())

	store := credstore.NewStore(cfg.SSO.ConfigPath, logger)
	app.CredentialStore = store

	factory := sso.NewChromeWindowFactory(cfg.SSO, logger)
	app.WindowFactory = factory

	registry := session.NewRegistry(factory, logger)
	app.SessionRegistry = registry

	app.Exchanger = exchange.NewService(store, cfg.SSO.ExchangeTimeout, logger)

	app.Orchestrator = sso.NewOrchestrator(
		cfg.SSO,
		store,
		app.Exchanger,
		registry,
		app.EventService,
		storageManager.HistoryStorage(),
		factory,
		logger,
	)

	app.Dispatcher = dispatch.NewService(cfg.Dispatch, logger)
	app.UnitService = units.NewService(cfg.Units, store, logger)

	app.Keepalive = keepalive.NewService(cfg.Keepalive, store, registry, app.EventService, logger)
	if err := app.Keepalive.Start(); err != nil {
		return nil, fmt.Errorf("failed to start keepalive: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Bool("keepalive_enabled", cfg.Keepalive.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.SSOHandler = handlers.NewSSOHandler(a.Orchestrator, a.CredentialStore, a.Logger)
	a.ConfigHandler = handlers.NewConfigHandler(a.CredentialStore, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionRegistry, a.EventService, a.Logger)
	a.HistoryHandler = handlers.NewHistoryHandler(a.StorageManager.HistoryStorage(), a.Logger)
	a.DispatchHandler = handlers.NewDispatchHandler(a.Dispatcher, a.Logger)
	a.UnitsHandler = handlers.NewUnitsHandler(a.UnitService, a.SessionRegistry, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KeyValueStorage(), a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.SessionRegistry, a.Logger, &a.Config.WebSocket)
}

// Close shuts the application down in reverse dependency order.
func (a *App) Close() error {
	if a.Keepalive != nil {
		a.Keepalive.Stop()
		a.Logger.Info().Msg("Keepalive stopped")
	}

	if a.LogConsumer != nil {
		if err := a.LogConsumer.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log consumer")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
