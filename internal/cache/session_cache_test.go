package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/storage/memory"
)

type countingStore struct {
	*memory.Store
	finds int
	err   error
}

func (s *countingStore) FindSessionByAddress(ctx context.Context, address string) (*domain.MailboxSession, error) {
	s.finds++
	if s.err != nil {
		return nil, s.err
	}
	return s.Store.FindSessionByAddress(ctx, address)
}

func TestSessionCache(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base

	newCache := func(t *testing.T) (*SessionCache, *countingStore) {
		t.Helper()
		mem := memory.NewStore(time.Hour)
		mem.SetClock(func() time.Time { return now })
		store := &countingStore{Store: mem}
		c := NewSessionCache(store, 2, time.Minute, time.Hour)
		c.SetClock(func() time.Time { return now })
		return c, store
	}

	save := func(t *testing.T, c *SessionCache, address string) {
		t.Helper()
		require.NoError(t, c.SaveSession(ctx, &domain.MailboxSession{
			Address:   address,
			CreatedAt: base,
			Token:     "tok",
			Provider:  domain.ProviderGuerrillaMail,
		}))
	}

	t.Run("命中缓存不访问存储", func(t *testing.T) {
		now = base
		c, store := newCache(t)
		save(t, c, "a@guerrillamail.com")

		for i := 0; i < 3; i++ {
			session, err := c.FindSessionByAddress(ctx, "A@guerrillamail.com")
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.Equal(t, "tok", session.Token)
		}
		assert.Equal(t, 1, store.finds)
	})

	t.Run("缓存过期后重新读取", func(t *testing.T) {
		now = base
		c, store := newCache(t)
		save(t, c, "a@guerrillamail.com")

		_, _ = c.FindSessionByAddress(ctx, "a@guerrillamail.com")
		now = base.Add(2 * time.Minute)
		_, _ = c.FindSessionByAddress(ctx, "a@guerrillamail.com")
		assert.Equal(t, 2, store.finds)
	})

	t.Run("不超过会话有效期", func(t *testing.T) {
		now = base.Add(time.Hour - 30*time.Second)
		c, _ := newCache(t)
		save(t, c, "a@guerrillamail.com")

		session, err := c.FindSessionByAddress(ctx, "a@guerrillamail.com")
		require.NoError(t, err)
		require.NotNil(t, session)

		now = base.Add(time.Hour)
		session, err = c.FindSessionByAddress(ctx, "a@guerrillamail.com")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("容量上限", func(t *testing.T) {
		now = base
		c, _ := newCache(t)
		for _, address := range []string{"a@x.com", "b@x.com", "c@x.com"} {
			save(t, c, address)
			_, err := c.FindSessionByAddress(ctx, address)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, c.Len())
	})

	t.Run("存储错误不缓存", func(t *testing.T) {
		now = base
		c, store := newCache(t)
		store.err = &domain.StoreError{Backend: "memory", Op: "find", Kind: domain.ErrStoreUnavailable}

		_, err := c.FindSessionByAddress(ctx, "a@x.com")
		assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
		assert.Equal(t, 0, c.Len())
	})
}
