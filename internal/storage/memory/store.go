package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/storage"
)

// Store 使用内存保存邮箱会话，供测试与 serve 模式使用。
type Store struct {
	mu        sync.RWMutex
	byAddress map[string]*domain.MailboxSession
	ttl       time.Duration
	now       func() time.Time
}

var _ storage.SessionRepository = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore(ttl time.Duration) *Store {
	return &Store{
		byAddress: make(map[string]*domain.MailboxSession),
		ttl:       ttl,
		now:       time.Now,
	}
}

// SetClock 替换时间来源（测试用）。
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SaveSession 保存新会话。
func (s *Store) SaveSession(_ context.Context, session *domain.MailboxSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneExpiredLocked()

	address := domain.NormalizeAddress(session.Address)
	if _, exists := s.byAddress[address]; exists {
		return &domain.StoreError{Backend: "memory", Op: "save", Kind: domain.ErrDuplicateKey}
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	clone := *session
	clone.Address = address
	s.byAddress[address] = &clone
	return nil
}

// FindSessionByAddress 查询未过期会话。
func (s *Store) FindSessionByAddress(_ context.Context, address string) (*domain.MailboxSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byAddress[domain.NormalizeAddress(address)]
	if !ok || storage.Expired(session, s.now(), s.ttl) {
		return nil, nil
	}

	clone := *session
	return &clone, nil
}

// ListActiveAddresses 返回未过期地址，按字母序排列。
func (s *Store) ListActiveAddresses(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	addresses := make([]string, 0, len(s.byAddress))
	for address, session := range s.byAddress {
		if storage.Expired(session, now, s.ttl) {
			continue
		}
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses, nil
}

// DeleteExpiredSessions 删除过期会话，返回删除数量。
func (s *Store) DeleteExpiredSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneExpiredLocked()
}

// Health 内存存储始终可用。
func (s *Store) Health() error {
	return nil
}

// Close 内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}

func (s *Store) pruneExpiredLocked() int {
	now := s.now()
	removed := 0
	for address, session := range s.byAddress {
		if storage.Expired(session, now, s.ttl) {
			delete(s.byAddress, address)
			removed++
		}
	}
	return removed
}
