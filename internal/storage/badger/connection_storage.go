package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ConnectionStorage implements interfaces.ConnectionStorage for Badger.
// The record lives under a single fixed key.
type ConnectionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewConnectionStorage creates a new ConnectionStorage instance
func NewConnectionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ConnectionStorage {
	return &ConnectionStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (s *ConnectionStorage) GetConfig(ctx context.Context) (*models.ConnectionConfig, error) {
	var cfg models.ConnectionConfig
	err := s.db.Store().Get(models.ConnectionConfigKey, &cfg)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection config: %w", err)
	}
	return &cfg, nil
}

func (s *ConnectionStorage) SaveCredentialsConfig(ctx context.Context, email, encryptedPassword string, status models.ConnectionStatus) (*models.ConnectionConfig, error) {
	return s.replace(func(cfg *models.ConnectionConfig) {
		cfg.AuthMethod = models.AuthMethodCredentials
		cfg.Email = email
		cfg.EncryptedPassword = encryptedPassword
		cfg.Status = status
	})
}

func (s *ConnectionStorage) SaveCookieConfig(ctx context.Context, encryptedCookie string, status models.ConnectionStatus) (*models.ConnectionConfig, error) {
	return s.replace(func(cfg *models.ConnectionConfig) {
		cfg.AuthMethod = models.AuthMethodCookie
		cfg.EncryptedCookie = encryptedCookie
		cfg.Status = status
	})
}

func (s *ConnectionStorage) SaveManualConfig(ctx context.Context, status models.ConnectionStatus) (*models.ConnectionConfig, error) {
	return s.replace(func(cfg *models.ConnectionConfig) {
		cfg.AuthMethod = models.AuthMethodManual
		cfg.Status = status
	})
}

func (s *ConnectionStorage) UpdateStatus(ctx context.Context, status models.ConnectionStatus, errorMessage string) (*models.ConnectionConfig, error) {
	return s.modify(func(cfg *models.ConnectionConfig) {
		cfg.Status = status
		if errorMessage != "" {
			cfg.ErrorMessage = errorMessage
		} else if status != models.ConnectionStatusError {
			cfg.ErrorMessage = ""
		}
	})
}

func (s *ConnectionStorage) UpdateLastConnected(ctx context.Context) (*models.ConnectionConfig, error) {
	return s.modify(func(cfg *models.ConnectionConfig) {
		now := s.now().UTC()
		cfg.LastConnectedAt = &now
	})
}

func (s *ConnectionStorage) DeleteConfig(ctx context.Context) (bool, error) {
	err := s.db.Store().Delete(models.ConnectionConfigKey, &models.ConnectionConfig{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete connection config: %w", err)
	}
	s.logger.Info().Msg("LinkedIn connection config deleted")
	return true, nil
}

// replace overwrites the record, keeping only its creation and last-connected
// timestamps. Secrets belonging to another auth method are dropped.
func (s *ConnectionStorage) replace(apply func(cfg *models.ConnectionConfig)) (*models.ConnectionConfig, error) {
	var saved *models.ConnectionConfig
	err := s.db.update(func(tx *badger.Txn) error {
		now := s.now().UTC()
		fresh := &models.ConnectionConfig{
			ID:        models.ConnectionConfigKey,
			CreatedAt: now,
		}

		var existing models.ConnectionConfig
		err := s.db.Store().TxGet(tx, models.ConnectionConfigKey, &existing)
		switch {
		case err == nil:
			fresh.CreatedAt = existing.CreatedAt
			fresh.LastConnectedAt = existing.LastConnectedAt
		case !errors.Is(err, badgerhold.ErrNotFound):
			return err
		}

		apply(fresh)
		fresh.ErrorMessage = ""
		fresh.UpdatedAt = now

		if err := s.db.Store().TxUpsert(tx, models.ConnectionConfigKey, fresh); err != nil {
			return err
		}
		saved = fresh
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save connection config: %w", err)
	}

	s.logger.Debug().
		Str("status", string(saved.Status)).
		Str("auth_method", string(saved.AuthMethod)).
		Msg("LinkedIn connection config saved")

	return saved, nil
}

// modify applies a partial update to an existing record. A missing record
// yields nil without error.
func (s *ConnectionStorage) modify(apply func(cfg *models.ConnectionConfig)) (*models.ConnectionConfig, error) {
	var saved *models.ConnectionConfig
	err := s.db.update(func(tx *badger.Txn) error {
		saved = nil
		var cfg models.ConnectionConfig
		err := s.db.Store().TxGet(tx, models.ConnectionConfigKey, &cfg)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		apply(&cfg)
		cfg.UpdatedAt = s.now().UTC()

		if err := s.db.Store().TxUpdate(tx, models.ConnectionConfigKey, &cfg); err != nil {
			return err
		}
		saved = &cfg
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update connection config: %w", err)
	}
	return saved, nil
}
