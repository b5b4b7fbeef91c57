package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestConnectionStorage_SaveAndUpdate(t *testing.T) {
	db := openTestDB(t)
	storage := NewConnectionStorage(db, arbor.NewLogger())
	ctx := context.Background()

	cfg, err := storage.GetConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg, "no config before first save")

	cfg, err = storage.SaveCredentialsConfig(ctx, "me@example.com", "enc-pwd", models.ConnectionStatusConnecting)
	require.NoError(t, err)
	assert.Equal(t, models.AuthMethodCredentials, cfg.AuthMethod)
	assert.Equal(t, "enc-pwd", cfg.EncryptedPassword)
	createdAt := cfg.CreatedAt

	cfg, err = storage.UpdateStatus(ctx, models.ConnectionStatusError, "bad password")
	require.NoError(t, err)
	assert.Equal(t, "bad password", cfg.ErrorMessage)

	cfg, err = storage.UpdateLastConnected(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastConnectedAt)
	lastConnected := *cfg.LastConnectedAt

	t.Run("save replaces the record but keeps timestamps", func(t *testing.T) {
		cfg, err := storage.SaveCookieConfig(ctx, "enc-cookie", models.ConnectionStatusConnected)
		require.NoError(t, err)

		stored, err := storage.GetConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.AuthMethodCookie, stored.AuthMethod)
		assert.Equal(t, "enc-cookie", stored.EncryptedCookie)
		assert.Empty(t, stored.EncryptedPassword)
		assert.Empty(t, stored.Email)
		assert.Empty(t, stored.ErrorMessage)
		assert.True(t, createdAt.Equal(stored.CreatedAt))
		require.NotNil(t, stored.LastConnectedAt)
		assert.True(t, lastConnected.Equal(*stored.LastConnectedAt))
		assert.Equal(t, cfg.Status, stored.Status)
	})

	t.Run("status update clears the error unless error", func(t *testing.T) {
		_, err := storage.UpdateStatus(ctx, models.ConnectionStatusError, "expired")
		require.NoError(t, err)

		cfg, err := storage.UpdateStatus(ctx, models.ConnectionStatusError, "")
		require.NoError(t, err)
		assert.Equal(t, "expired", cfg.ErrorMessage)

		cfg, err = storage.UpdateStatus(ctx, models.ConnectionStatusDisconnected, "")
		require.NoError(t, err)
		assert.Empty(t, cfg.ErrorMessage)
	})

	t.Run("delete", func(t *testing.T) {
		deleted, err := storage.DeleteConfig(ctx)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = storage.DeleteConfig(ctx)
		require.NoError(t, err)
		assert.False(t, deleted)

		cfg, err := storage.UpdateStatus(ctx, models.ConnectionStatusConnected, "")
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})
}

func TestRateLimitStorage_Update(t *testing.T) {
	db := openTestDB(t)
	storage := NewRateLimitStorage(db, arbor.NewLogger())
	ctx := context.Background()

	state, err := storage.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.SearchesToday)
	assert.Equal(t, 0, state.DayStartedAt.Hour())
	assert.Equal(t, time.UTC, state.DayStartedAt.Location())

	// No process lock: concurrent writers rely on transaction conflict retries
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.Update(ctx, func(s *models.RateLimitState) error {
				s.SearchesToday++
				s.TotalSearches++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err = storage.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, state.SearchesToday)
	assert.Equal(t, int64(20), state.TotalSearches)

	t.Run("failed update writes nothing", func(t *testing.T) {
		_, err := storage.Update(ctx, func(s *models.RateLimitState) error {
			s.SearchesToday = 999
			return assert.AnError
		})
		require.Error(t, err)

		state, err := storage.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20, state.SearchesToday)
	})
}

func TestSearchSessionStorage(t *testing.T) {
	db := openTestDB(t)
	storage := NewSearchSessionStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, owner := range []string{"u1", "u1", "u2"} {
		err := storage.CreateSession(ctx, &models.SearchSession{
			ID:             string(rune('a' + i)),
			OwnerID:        owner,
			TargetEntities: []string{"Acme", "Globex"},
			Keywords:       []string{"cto"},
			TotalSearches:  2,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	t.Run("append results accumulates", func(t *testing.T) {
		_, err := storage.AppendResults(ctx, "a", []models.ContactRecord{{Name: "Alice"}}, 1)
		require.NoError(t, err)
		session, err := storage.AppendResults(ctx, "a", []models.ContactRecord{{Name: "Bob"}}, 1)
		require.NoError(t, err)
		assert.Len(t, session.Results, 2)
		assert.Equal(t, 2, session.EntitiesSearched)
	})

	t.Run("terminal sessions are frozen", func(t *testing.T) {
		require.NoError(t, storage.CompleteSession(ctx, "a", models.SessionStatusCompleted, ""))
		require.NoError(t, storage.CompleteSession(ctx, "a", models.SessionStatusFailed, "late"))

		session, err := storage.AppendResults(ctx, "a", []models.ContactRecord{{Name: "Carol"}}, 1)
		require.NoError(t, err)
		assert.Len(t, session.Results, 2)
		assert.Equal(t, models.SessionStatusCompleted, session.Status)
		assert.NotNil(t, session.CompletedAt)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := storage.GetSession(ctx, "zzz")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
		_, err = storage.AppendResults(ctx, "zzz", nil, 1)
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("list by owner newest first", func(t *testing.T) {
		sessions, total, err := storage.ListByOwner(ctx, "u1", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, sessions, 2)
		assert.Equal(t, "b", sessions[0].ID)

		sessions, total, err = storage.ListByOwner(ctx, "u1", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, sessions, 1)
		assert.Equal(t, "a", sessions[0].ID)
	})

	t.Run("completed since", func(t *testing.T) {
		sessions, err := storage.FindCompletedSince(ctx, "u1", base.Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, "a", sessions[0].ID)

		sessions, err = storage.FindCompletedSince(ctx, "u1", time.Now().UTC())
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("list by status", func(t *testing.T) {
		sessions, err := storage.ListByStatus(ctx, models.SessionStatusInProgress)
		require.NoError(t, err)
		assert.Len(t, sessions, 2)
	})

	t.Run("delete older than keeps running sessions", func(t *testing.T) {
		deleted, err := storage.DeleteOlderThan(ctx, time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = storage.GetSession(ctx, "b")
		assert.NoError(t, err)
	})
}

func TestKVStorage_TTL(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger()).(*KVStorage)
	ctx := context.Background()

	now := time.Now()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "CSRF", "token", time.Minute))
	value, err := kv.Get(ctx, "csrf")
	require.NoError(t, err)
	assert.Equal(t, "token", value)

	now = now.Add(2 * time.Minute)
	_, err = kv.Get(ctx, "csrf")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "forever", "v", 0))
	now = now.Add(24 * time.Hour)
	value, err = kv.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	assert.ErrorIs(t, kv.Delete(ctx, "missing"), interfaces.ErrKeyNotFound)
}
