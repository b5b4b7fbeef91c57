package badger

import (
	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db            *BadgerDB
	connection    interfaces.ConnectionStorage
	rateLimit     interfaces.RateLimitStorage
	searchSession interfaces.SearchSessionStorage
	kv            interfaces.KeyValueStorage
	logger        arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:            db,
		connection:    NewConnectionStorage(db, logger),
		rateLimit:     NewRateLimitStorage(db, logger),
		searchSession: NewSearchSessionStorage(db, logger),
		kv:            NewKVStorage(db, logger),
		logger:        logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// ConnectionStorage returns the LinkedIn connection storage
func (m *Manager) ConnectionStorage() interfaces.ConnectionStorage {
	return m.connection
}

// RateLimitStorage returns the rate limit storage
func (m *Manager) RateLimitStorage() interfaces.RateLimitStorage {
	return m.rateLimit
}

// SearchSessionStorage returns the search session storage
func (m *Manager) SearchSessionStorage() interfaces.SearchSessionStorage {
	return m.searchSession
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
