package testsuite

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession() sessions.Session {
	return sessions.Session{
		Id:                 uuid.NewString(),
		Status:             sessions.StatusPendingAuthorization,
		CreatedAt:          time.Now().UTC().Truncate(time.Second),
		Amount:             500,
		ReceivingWalletUrl: "https://example.test/bob",
		OutgoingGrant: sessions.OutgoingGrant{
			ContinueUri:   "https://example.test/auth/continue/" + uuid.NewString(),
			ContinueToken: "token",
			RedirectUrl:   "https://example.test/auth/interact/" + uuid.NewString(),
		},
	}
}

var errAbort = errors.New("abort")

// Test runs the contract every sessions.Store must satisfy
func Test(t *testing.T, store sessions.Store) {
	t.Run("Create and Get", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		session := newSession()
		err := store.Create(ctx, session)
		assertions.Nil(err, "failed to create session")

		stored, err := store.Get(ctx, session.Id)
		assertions.Nil(err, "failed to get session")
		assertions.Equal(session, stored)

		err = store.Create(ctx, session)
		assertions.ErrorIs(err, sessions.ErrExists, "ids can't be reused")

		_, err = store.Get(ctx, uuid.NewString())
		assertions.ErrorIs(err, sessions.ErrNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		session := newSession()
		require.Nil(t, store.Create(ctx, session), "failed to create session")

		updated, err := store.Update(ctx, session.Id, func(s *sessions.Session) (err error) {
			s.Status = sessions.StatusCompleted
			s.CompletedAt = s.CreatedAt.Add(time.Minute)
			return nil
		})
		assertions.Nil(err, "failed to update session")
		assertions.Equal(sessions.StatusCompleted, updated.Status)

		stored, err := store.Get(ctx, session.Id)
		assertions.Nil(err, "failed to get session")
		assertions.Equal(updated, stored, "update should be persisted")

		_, err = store.Update(ctx, session.Id, func(s *sessions.Session) (err error) {
			s.Status = sessions.StatusErrored
			return errAbort
		})
		assertions.ErrorIs(err, errAbort, "mutator error should be returned")

		stored, err = store.Get(ctx, session.Id)
		assertions.Nil(err, "failed to get session")
		assertions.Equal(sessions.StatusCompleted, stored.Status, "aborted update should not be persisted")

		_, err = store.Update(ctx, uuid.NewString(), func(s *sessions.Session) (err error) { return nil })
		assertions.ErrorIs(err, sessions.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		session := newSession()
		require.Nil(t, store.Create(ctx, session), "failed to create session")

		err := store.Delete(ctx, session.Id)
		assertions.Nil(err, "failed to delete session")

		_, err = store.Get(ctx, session.Id)
		assertions.ErrorIs(err, sessions.ErrNotFound, "deleted session should be gone")

		err = store.Delete(ctx, session.Id)
		assertions.ErrorIs(err, sessions.ErrNotFound)
	})

	t.Run("Stream", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		var expected = make(map[string]bool)
		for range 10 {
			session := newSession()
			require.Nil(t, store.Create(ctx, session), "failed to create session")
			expected[session.Id] = true
		}

		stream, errChan := store.Stream(ctx)
		var found int
		for session := range stream {
			if expected[session.Id] {
				found++
			}
		}
		assertions.Nil(<-errChan, "failed to stream sessions")
		assertions.Equal(len(expected), found, "every created session should be streamed")
	})

	t.Run("Concurrent updates", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		session := newSession()
		session.Amount = 0
		require.Nil(t, store.Create(ctx, session), "failed to create session")

		const workers = 25

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, session.Id, func(s *sessions.Session) (err error) {
					s.Amount++
					return nil
				})
				assertions.Nil(err, "failed to update session")
			}()
		}
		wg.Wait()

		stored, err := store.Get(ctx, session.Id)
		assertions.Nil(err, "failed to get session")
		assertions.Equal(uint64(workers), stored.Amount, "no update should be lost")
	})

	t.Run("Single claim", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		session := newSession()
		require.Nil(t, store.Create(ctx, session), "failed to create session")

		const workers = 25

		var (
			claimed int64
			wg      sync.WaitGroup
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, session.Id, func(s *sessions.Session) (err error) {
					if s.Status != sessions.StatusPendingAuthorization {
						return errAbort
					}
					s.Status = sessions.StatusCompleting
					return nil
				})
				if err == nil {
					atomic.AddInt64(&claimed, 1)
					return
				}
				assertions.ErrorIs(err, errAbort)
			}()
		}
		wg.Wait()

		assertions.Equal(int64(1), claimed, "exactly one worker should claim the session")
	})
}
