package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/storage"
)

const backendName = "redis"

// Store 将会话以 JSON 文档保存在 Redis 中，依赖键过期实现 TTL。
//
// 键格式: <prefix>session:<address>
type Store struct {
	client *Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

var _ storage.SessionRepository = (*Store)(nil)

// NewStore 创建 Redis 会话存储
func NewStore(client *Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		log:    client.log,
	}
}

func (s *Store) sessionKey(address string) string {
	return s.prefix + "session:" + address
}

// SaveSession 使用 SET NX EXAT 写入会话，键已存在时返回 DuplicateKey。
//
// 已过期的会话无法设置 EXAT，返回 InvalidInput 而不写入。
func (s *Store) SaveSession(ctx context.Context, session *domain.MailboxSession) error {
	address := domain.NormalizeAddress(session.Address)
	expireAt := session.ExpiresAt(s.ttl)
	if !s.now().Before(expireAt) {
		s.log.Warn("refusing to save expired session", zap.String("address", address), zap.Time("expire_at", expireAt))
		return &domain.StoreError{
			Backend: backendName,
			Op:      "save",
			Kind:    domain.ErrInvalidInput,
			Err:     fmt.Errorf("session %s expired at %s", address, expireAt.Format(time.RFC3339)),
		}
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Address = address

	data, err := json.Marshal(storage.RecordFromSession(session))
	if err != nil {
		return &domain.StoreError{Backend: backendName, Op: "save", Kind: domain.ErrRecordShapeMismatch, Err: err}
	}

	err = s.client.rdb.SetArgs(ctx, s.sessionKey(address), data, goredis.SetArgs{
		Mode:     "NX",
		ExpireAt: expireAt,
	}).Err()
	if errors.Is(err, goredis.Nil) {
		return &domain.StoreError{Backend: backendName, Op: "save", Kind: domain.ErrDuplicateKey}
	}
	if err != nil {
		return &domain.StoreError{Backend: backendName, Op: "save", Kind: domain.ErrStoreUnavailable, Err: err}
	}
	return nil
}

// FindSessionByAddress 读取会话，键不存在（含已过期）时返回 (nil, nil)。
func (s *Store) FindSessionByAddress(ctx context.Context, address string) (*domain.MailboxSession, error) {
	data, err := s.client.rdb.Get(ctx, s.sessionKey(domain.NormalizeAddress(address))).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Backend: backendName, Op: "find", Kind: domain.ErrStoreUnavailable, Err: err}
	}

	session, err := storage.DecodeRecord(data)
	if err != nil {
		return nil, &domain.StoreError{Backend: backendName, Op: "find", Kind: domain.ErrRecordShapeMismatch, Err: err}
	}
	if storage.Expired(session, s.now(), s.ttl) {
		return nil, nil
	}
	return session, nil
}

// ListActiveAddresses 通过 SCAN 枚举会话键。
func (s *Store) ListActiveAddresses(ctx context.Context) ([]string, error) {
	keyPrefix := s.sessionKey("")
	iter := s.client.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()

	addresses := make([]string, 0)
	for iter.Next(ctx) {
		addresses = append(addresses, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, &domain.StoreError{Backend: backendName, Op: "list", Kind: domain.ErrStoreUnavailable, Err: err}
	}

	sort.Strings(addresses)
	return addresses, nil
}

// Health 检查 Redis 连通性
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx); err != nil {
		return &domain.StoreError{Backend: backendName, Op: "ping", Kind: domain.ErrStoreUnavailable, Err: err}
	}
	return nil
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}
