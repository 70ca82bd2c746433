package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"tempmail/disposable/internal/config"
	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/storage"
)

// sessionRecord 是 mailbox_sessions 表的一行，对应持久化记录中的 mails[0]。
//
// created_at 保存 Unix 纳秒，与内存和 Redis 后端的过期判断保持一致。
type sessionRecord struct {
	ID                string `db:"id" gorm:"primaryKey;size:36"`
	Address           string `db:"address" gorm:"size:255;not null;uniqueIndex"`
	Provider          string `db:"provider" gorm:"size:32;not null"`
	Alias             string `db:"alias" gorm:"size:255"`
	Token             string `db:"token" gorm:"size:255;not null"`
	ProviderTimestamp int64  `db:"provider_timestamp"`
	CreatedAt         int64  `db:"created_at" gorm:"not null;index;autoCreateTime:false"`
}

// TableName 指定 GORM 迁移使用的表名
func (sessionRecord) TableName() string {
	return "mailbox_sessions"
}

func (r sessionRecord) record() storage.Record {
	return storage.Record{
		ID:        r.ID,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		Name:      r.Provider,
		Mails: []storage.MailEntry{{
			EmailAddr:      r.Address,
			EmailTimestamp: r.ProviderTimestamp,
			Alias:          r.Alias,
			SidToken:       r.Token,
		}},
	}
}

// Store SQL 会话存储（支持 SQLite、PostgreSQL、MySQL）
type Store struct {
	db         *sqlx.DB
	driverName string
	ttl        time.Duration
	now        func() time.Time
}

var _ storage.SessionRepository = (*Store)(nil)

// NewStore 打开数据库、测试连接并执行迁移
func NewStore(cfg config.StorageConfig, ttl time.Duration) (*Store, error) {
	switch cfg.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, unavailable("open", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite 只允许单写者
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("ping", err)
	}

	store := NewStoreWithDB(db, ttl)
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}

	return store, nil
}

// NewStoreWithDB 使用已有连接创建存储（不执行迁移）
func NewStoreWithDB(db *sqlx.DB, ttl time.Duration) *Store {
	return &Store{
		db:         db,
		driverName: db.DriverName(),
		ttl:        ttl,
		now:        time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// cutoff 返回存活会话 created_at 的下界（不含）
func (s *Store) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

// SaveSession 插入新会话，同地址的过期行会先被清除。
func (s *Store) SaveSession(ctx context.Context, session *domain.MailboxSession) error {
	address := domain.NormalizeAddress(session.Address)

	purge := s.db.Rebind(`DELETE FROM mailbox_sessions WHERE address = ? AND created_at <= ?`)
	if _, err := s.db.ExecContext(ctx, purge, address, s.cutoff()); err != nil {
		return unavailable("save", err)
	}

	id := session.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := s.db.Rebind(`
		INSERT INTO mailbox_sessions (id, address, provider, alias, token, provider_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		id,
		address,
		session.Provider,
		session.Alias,
		session.Token,
		session.ProviderTimestamp,
		session.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.StoreError{Backend: s.driverName, Op: "save", Kind: domain.ErrDuplicateKey, Err: err}
		}
		return unavailable("save", err)
	}

	session.ID = id
	session.Address = address
	return nil
}

// FindSessionByAddress 查询未过期会话，不存在时返回 (nil, nil)。
func (s *Store) FindSessionByAddress(ctx context.Context, address string) (*domain.MailboxSession, error) {
	query := s.db.Rebind(`
		SELECT id, address, provider, alias, token, provider_timestamp, created_at
		FROM mailbox_sessions
		WHERE address = ? AND created_at > ?
	`)

	var row sessionRecord
	err := s.db.GetContext(ctx, &row, query, domain.NormalizeAddress(address), s.cutoff())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find", err)
	}

	session, err := row.record().Session()
	if err != nil {
		return nil, &domain.StoreError{Backend: s.driverName, Op: "find", Kind: domain.ErrRecordShapeMismatch, Err: err}
	}
	return session, nil
}

// ListActiveAddresses 列出未过期地址
func (s *Store) ListActiveAddresses(ctx context.Context) ([]string, error) {
	query := s.db.Rebind(`SELECT address FROM mailbox_sessions WHERE created_at > ? ORDER BY address`)

	addresses := make([]string, 0)
	if err := s.db.SelectContext(ctx, &addresses, query, s.cutoff()); err != nil {
		return nil, unavailable("list", err)
	}
	return addresses, nil
}

// DeleteExpiredSessions 删除过期会话，返回删除数量
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	query := s.db.Rebind(`DELETE FROM mailbox_sessions WHERE created_at <= ?`)
	result, err := s.db.ExecContext(ctx, query, s.cutoff())
	if err != nil {
		return 0, unavailable("purge", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return int(n), nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return unavailable("ping", errors.New("database connection is nil"))
	}
	if err := s.db.Ping(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func unavailable(op string, err error) error {
	return &domain.StoreError{Backend: "sql", Op: op, Kind: domain.ErrStoreUnavailable, Err: err}
}
