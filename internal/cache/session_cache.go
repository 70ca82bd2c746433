package cache

import (
	"context"
	"sync"
	"time"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/storage"
)

// SessionCache 会话存储的本地读缓存（L1 缓存）
//
// serve 模式下同一地址会被反复解析，缓存命中时不再访问 Redis 或数据库。
// 条目过期时间不晚于会话本身的过期时间；写操作直接透传给底层存储。
type SessionCache struct {
	storage.SessionRepository

	mu         sync.RWMutex
	entries    map[string]cacheEntry
	maxSize    int
	ttl        time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	session   domain.MailboxSession
	expiresAt time.Time
}

// NewSessionCache 包装底层存储
//
// 参数:
//   - repo: 底层会话存储
//   - maxSize: 最大缓存条目数
//   - ttl: 条目最长缓存时间
//   - sessionTTL: 会话有效期
func NewSessionCache(repo storage.SessionRepository, maxSize int, ttl, sessionTTL time.Duration) *SessionCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &SessionCache{
		SessionRepository: repo,
		entries:           make(map[string]cacheEntry),
		maxSize:           maxSize,
		ttl:               ttl,
		sessionTTL:        sessionTTL,
		now:               time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (c *SessionCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// FindSessionByAddress 优先读取缓存
func (c *SessionCache) FindSessionByAddress(ctx context.Context, address string) (*domain.MailboxSession, error) {
	key := domain.NormalizeAddress(address)

	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if ok && now.Before(entry.expiresAt) {
		session := entry.session
		return &session, nil
	}

	session, err := c.SessionRepository.FindSessionByAddress(ctx, address)
	if err != nil || session == nil {
		if ok {
			c.delete(key)
		}
		return session, err
	}

	c.set(key, session)
	return session, nil
}

// Len 返回当前缓存条目数
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SessionCache) set(key string, session *domain.MailboxSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiresAt := now.Add(c.ttl)
	if sessionEnd := session.ExpiresAt(c.sessionTTL); sessionEnd.Before(expiresAt) {
		expiresAt = sessionEnd
	}
	if !now.Before(expiresAt) {
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{session: *session, expiresAt: expiresAt}
}

func (c *SessionCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// evictLocked 先清理过期条目，仍然已满时淘汰最早过期的条目
func (c *SessionCache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxSize && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
