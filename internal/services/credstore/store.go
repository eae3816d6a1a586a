// -----------------------------------------------------------------------
// Credential store: persisted SSO document with compiled-in defaults
// -----------------------------------------------------------------------

package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/aditus/internal/interfaces"
	"github.com/ternarybob/aditus/internal/models"
	"github.com/ternarybob/arbor"
)

// NewDefaultSSOConfig returns the compiled-in SSO document defaults.
func NewDefaultSSOConfig() *models.SSOConfig {
	return &models.SSOConfig{
		LoginURL:          "https://xacthuctaptrung.dcs.vn/sso/login",
		ServiceURL:        "http://103.157.218.21:8099",
		CallbackURL:       "http://103.157.218.21:9080/api/auth/callback",
		AppCode:           "ICPV",
		AutoRedirectOn403: true,
		Selectors: models.Selectors{
			User:   models.DefaultUserSelector,
			Pass:   models.DefaultPassSelector,
			Submit: models.DefaultSubmitSelector,
		},
		Accounts: []models.Account{},
	}
}

// Store persists the SSO document as a JSON side file. A missing or corrupt
// file is never fatal: defaults win and the error is only logged.
type Store struct {
	path   string
	mu     sync.RWMutex
	config *models.SSOConfig
	logger arbor.ILogger
}

// NewStore creates a credential store backed by the file at path and loads it.
func NewStore(path string, logger arbor.ILogger) interfaces.CredentialStore {
	s := &Store{
		path:   path,
		logger: logger,
	}
	s.config = s.loadFromDisk()
	return s
}

func (s *Store) loadFromDisk() *models.SSOConfig {
	config := NewDefaultSSOConfig()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read SSO config, using defaults")
		}
		return config
	}

	// Merge persisted fields over defaults. A corrupt document falls back
	// to defaults entirely.
	if err := json.Unmarshal(data, config); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Corrupt SSO config, using defaults")
		return NewDefaultSSOConfig()
	}

	config.Normalize()
	s.logger.Info().Str("path", s.path).Int("accounts", len(config.Accounts)).Msg("Loaded SSO config")
	return config
}

// Load returns a deep copy of the current document.
func (s *Store) Load() *models.SSOConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneConfig(s.config)
}

// Save overwrites the persisted document wholesale.
func (s *Store) Save(cfg *models.SSOConfig) error {
	if cfg == nil {
		return fmt.Errorf("sso config cannot be nil")
	}
	cfg.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cloneConfig(cfg)
	return s.persist()
}

// AddAccount appends an account and persists.
func (s *Store) AddAccount(account models.Account) error {
	if account.Name == "" {
		return fmt.Errorf("account name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Accounts = append(s.config.Accounts, account)
	return s.persist()
}

// RemoveAccount deletes the account at the given list position. List order is
// the only account identity.
func (s *Store) RemoveAccount(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.config.Accounts) {
		return fmt.Errorf("account index out of range: %d", index)
	}

	s.config.Accounts = append(s.config.Accounts[:index], s.config.Accounts[index+1:]...)
	return s.persist()
}

// persist writes the document to disk. Caller holds the write lock.
func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sso config: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write sso config: %w", err)
	}

	s.logger.Debug().Str("path", s.path).Msg("Saved SSO config")
	return nil
}

func cloneConfig(cfg *models.SSOConfig) *models.SSOConfig {
	clone := *cfg
	clone.Accounts = make([]models.Account, len(cfg.Accounts))
	copy(clone.Accounts, cfg.Accounts)
	return &clone
}
