package service

import (
	"context"
	"fmt"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/monitoring"
	"tempmail/disposable/internal/storage"
)

// Resolver 将地址解析为存储中的有效会话。
type Resolver struct {
	store   storage.SessionRepository
	metrics *monitoring.Metrics
}

// NewResolver 创建地址解析器
func NewResolver(store storage.SessionRepository, metrics *monitoring.Metrics) *Resolver {
	return &Resolver{store: store, metrics: metrics}
}

// Resolve 查找地址对应的会话。
//
// 不存在或已过期返回 domain.ErrSessionNotFound，存储故障原样返回。
func (r *Resolver) Resolve(ctx context.Context, address string) (*domain.MailboxSession, error) {
	normalized := domain.NormalizeAddress(address)
	if normalized == "" {
		return nil, fmt.Errorf("%w: email address is required", domain.ErrInvalidInput)
	}

	session, err := r.store.FindSessionByAddress(ctx, normalized)
	if err != nil {
		r.metrics.RecordStoreOperation("find", domain.Kind(err))
		return nil, err
	}
	if session == nil {
		r.metrics.RecordStoreOperation("find", "miss")
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, normalized)
	}

	r.metrics.RecordStoreOperation("find", "ok")
	return session, nil
}
