package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlmock "gopkg.in/DATA-DOG/go-sqlmock.v1"

	"tempmail/disposable/internal/config"
	"tempmail/disposable/internal/domain"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T, now *time.Time) *Store {
	t.Helper()

	store, err := NewStore(config.StorageConfig{Driver: "sqlite", DSN: ":memory:"}, time.Hour)
	require.NoError(t, err)
	store.SetClock(func() time.Time { return *now })

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newSession(address string) *domain.MailboxSession {
	return &domain.MailboxSession{
		Address:           address,
		CreatedAt:         base,
		Token:             "tok-" + address,
		Provider:          domain.ProviderGuerrillaMail,
		Alias:             "alias1",
		ProviderTimestamp: base.Unix(),
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	now := base
	store := newSQLiteStore(t, &now)

	t.Run("迁移可重复执行", func(t *testing.T) {
		assert.NoError(t, store.Migrate())
	})

	t.Run("保存后可按地址查询", func(t *testing.T) {
		session := newSession("abc@guerrillamailblock.com")
		require.NoError(t, store.SaveSession(ctx, session))
		assert.NotEmpty(t, session.ID)

		found, err := store.FindSessionByAddress(ctx, "ABC@guerrillamailblock.com")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, session.ID, found.ID)
		assert.Equal(t, "tok-abc@guerrillamailblock.com", found.Token)
		assert.Equal(t, base, found.CreatedAt)
		assert.Equal(t, "alias1", found.Alias)
		assert.Equal(t, domain.ProviderGuerrillaMail, found.Provider)
	})

	t.Run("重复地址返回DuplicateKey", func(t *testing.T) {
		err := store.SaveSession(ctx, newSession("abc@guerrillamailblock.com"))
		assert.True(t, errors.Is(err, domain.ErrDuplicateKey))
	})

	t.Run("过期边界", func(t *testing.T) {
		now = base.Add(3599 * time.Second)
		found, err := store.FindSessionByAddress(ctx, "abc@guerrillamailblock.com")
		require.NoError(t, err)
		assert.NotNil(t, found)

		now = base.Add(3600 * time.Second)
		found, err = store.FindSessionByAddress(ctx, "abc@guerrillamailblock.com")
		require.NoError(t, err)
		assert.Nil(t, found)

		addresses, err := store.ListActiveAddresses(ctx)
		require.NoError(t, err)
		assert.Empty(t, addresses)
	})

	t.Run("亚秒级创建时间的过期边界", func(t *testing.T) {
		created := base.Add(700 * time.Millisecond)
		session := newSession("frac@guerrillamailblock.com")
		session.CreatedAt = created
		now = created
		require.NoError(t, store.SaveSession(ctx, session))

		now = created.Add(3599*time.Second + 500*time.Millisecond)
		found, err := store.FindSessionByAddress(ctx, "frac@guerrillamailblock.com")
		require.NoError(t, err)
		require.NotNil(t, found, "createdAt+3599.5s 时会话仍应存活")
		assert.True(t, created.Equal(found.CreatedAt))

		now = created.Add(time.Hour - time.Nanosecond)
		found, err = store.FindSessionByAddress(ctx, "frac@guerrillamailblock.com")
		require.NoError(t, err)
		assert.NotNil(t, found)

		now = created.Add(time.Hour)
		found, err = store.FindSessionByAddress(ctx, "frac@guerrillamailblock.com")
		require.NoError(t, err)
		assert.Nil(t, found)

		// 此时 abc 与 frac 均已过期
		removed, err := store.DeleteExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		now = base.Add(3600 * time.Second)
	})

	t.Run("过期地址可重新创建", func(t *testing.T) {
		session := newSession("abc@guerrillamailblock.com")
		session.CreatedAt = now
		require.NoError(t, store.SaveSession(ctx, session))

		addresses, err := store.ListActiveAddresses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"abc@guerrillamailblock.com"}, addresses)
	})

	t.Run("清理过期会话", func(t *testing.T) {
		_, err := store.db.Exec(`INSERT INTO mailbox_sessions (id, address, provider, alias, token, provider_timestamp, created_at) VALUES ('old', 'old@x.com', 'guerrillamail', '', 't', 0, ?)`, base.UnixNano())
		require.NoError(t, err)

		removed, err := store.DeleteExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
	})

	t.Run("未知提供商返回RecordShapeMismatch", func(t *testing.T) {
		_, err := store.db.Exec(`INSERT INTO mailbox_sessions (id, address, provider, alias, token, provider_timestamp, created_at) VALUES ('x', 'odd@x.com', 'mailinator', '', 't', 0, ?)`, now.UnixNano())
		require.NoError(t, err)

		found, err := store.FindSessionByAddress(ctx, "odd@x.com")
		assert.Nil(t, found)
		assert.True(t, errors.Is(err, domain.ErrRecordShapeMismatch))
	})

	t.Run("健康检查", func(t *testing.T) {
		assert.NoError(t, store.Health())
	})
}

func TestNewStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore(config.StorageConfig{Driver: "oracle"}, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewStoreWithDB(sqlx.NewDb(db, "postgres"), time.Hour)
	store.SetClock(func() time.Time { return base })
	t.Cleanup(func() { _ = db.Close() })
	return store, mock
}

func TestPostgresStore_Mock(t *testing.T) {
	ctx := context.Background()
	cutoff := base.Add(-time.Hour).UnixNano()

	t.Run("插入使用$占位符", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`DELETE FROM mailbox_sessions WHERE address = \$1 AND created_at <= \$2`).
			WithArgs("a@x.com", cutoff).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO mailbox_sessions`).
			WithArgs(sqlmock.AnyArg(), "a@x.com", "guerrillamail", "alias1", "tok-a@x.com", base.Unix(), base.UnixNano()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, store.SaveSession(ctx, newSession("a@x.com")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("唯一约束冲突映射为DuplicateKey", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`DELETE FROM mailbox_sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO mailbox_sessions`).WillReturnError(&pq.Error{Code: "23505"})

		err := store.SaveSession(ctx, newSession("a@x.com"))
		assert.True(t, errors.Is(err, domain.ErrDuplicateKey))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("连接失败映射为StoreUnavailable", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`SELECT id, address`).WillReturnError(errors.New("connection refused"))

		_, err := store.FindSessionByAddress(ctx, "a@x.com")
		assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("查询不到返回nil", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`FROM mailbox_sessions`).
			WithArgs("a@x.com", cutoff).
			WillReturnRows(sqlmock.NewRows([]string{"id", "address", "provider", "alias", "token", "provider_timestamp", "created_at"}))

		found, err := store.FindSessionByAddress(ctx, "a@x.com")
		assert.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("RowsAffected失败映射为StoreUnavailable", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec(`DELETE FROM mailbox_sessions WHERE created_at <= \$1`).
			WithArgs(cutoff).
			WillReturnResult(sqlmock.NewErrorResult(errors.New("driver cannot report rows")))

		removed, err := store.DeleteExpiredSessions(ctx)
		assert.Equal(t, 0, removed)
		assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("列出活跃地址", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`SELECT address FROM mailbox_sessions WHERE created_at > \$1`).
			WithArgs(cutoff).
			WillReturnRows(sqlmock.NewRows([]string{"address"}).AddRow("a@x.com").AddRow("b@x.com"))

		addresses, err := store.ListActiveAddresses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, addresses)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "42P01"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
