package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - SSO login flow
	mux.HandleFunc("/api/sso/login", s.app.SSOHandler.LoginHandler)                    // POST - trigger login attempt
	mux.HandleFunc("/api/sso/partition/clear", s.app.SSOHandler.ClearPartitionHandler) // POST - wipe login partition
	mux.HandleFunc("/api/sso/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.app.ConfigHandler.GetConfigHandler,
		http.MethodPut: s.app.ConfigHandler.UpdateConfigHandler,
	}))
	mux.HandleFunc("/api/sso/accounts", s.app.ConfigHandler.AddAccountHandler)         // POST - add account
	mux.HandleFunc("/api/sso/accounts/", s.app.ConfigHandler.RemoveAccountHandler)     // DELETE /{index}
	mux.HandleFunc("/api/sso/session", s.app.SessionHandler.SessionHandler)            // GET/DELETE - session snapshot
	mux.HandleFunc("/api/sso/history", s.app.HistoryHandler.ListHandler)               // GET - login history

	// API routes - request dispatcher
	mux.HandleFunc("/api/call", s.app.DispatchHandler.CallHandler) // POST - passthrough request

	// API routes - accounting units
	mux.HandleFunc("/api/units/session", s.app.UnitsHandler.SetUnitSessionHandler) // POST - bind unit
	mux.HandleFunc("/api/units/", s.app.UnitsHandler.FetchUnitsHandler)            // GET /{orgId}

	// API routes - key/value preferences
	mux.HandleFunc("/api/kv", s.app.KVHandler.ListKVHandler) // GET - list all
	mux.HandleFunc("/api/kv/", s.app.KVHandler.KVHandler)    // GET/PUT/DELETE /{key}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Unknown API paths get a JSON 404
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
