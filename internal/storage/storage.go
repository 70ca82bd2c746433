package storage

import (
	"context"

	"tempmail/disposable/internal/domain"
)

// SessionRepository 定义邮箱会话的存取操作。
//
// 过期由存储层负责：会话在 CreatedAt+TTL 之后对所有读取不可见，
// 调用方无需区分“不存在”与“已过期”。
type SessionRepository interface {
	// SaveSession 持久化新会话并分配 ID，地址已存在时返回 domain.ErrDuplicateKey。
	SaveSession(ctx context.Context, session *domain.MailboxSession) error
	// FindSessionByAddress 查询未过期的会话，不存在或已过期时返回 (nil, nil)。
	FindSessionByAddress(ctx context.Context, address string) (*domain.MailboxSession, error)
	// ListActiveAddresses 返回所有未过期的地址。
	ListActiveAddresses(ctx context.Context) ([]string, error)
	// Health 检查后端连通性。
	Health() error
	// Close 释放连接。
	Close() error
}
