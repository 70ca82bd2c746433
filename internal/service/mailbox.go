package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/monitoring"
	"tempmail/disposable/internal/provider"
	"tempmail/disposable/internal/storage"
)

// MailboxService 封装邮箱创建、取信与清单业务操作。
type MailboxService struct {
	providers *provider.Registry
	store     storage.SessionRepository
	resolver  *Resolver
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(providers *provider.Registry, store storage.SessionRepository, resolver *Resolver, metrics *monitoring.Metrics, log *zap.Logger) *MailboxService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailboxService{
		providers: providers,
		store:     store,
		resolver:  resolver,
		metrics:   metrics,
		log:       log,
	}
}

// Create 向提供商申请新地址并立即持久化。
func (s *MailboxService) Create(ctx context.Context, providerName string) (*domain.MailboxSession, error) {
	client, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	session, err := client.CreateMailbox(ctx)
	if err != nil {
		s.metrics.RecordError(domain.Kind(err), "provider")
		return nil, err
	}

	if err := s.store.SaveSession(ctx, session); err != nil {
		s.metrics.RecordStoreOperation("save", domain.Kind(err))
		return nil, err
	}

	s.metrics.RecordStoreOperation("save", "ok")
	s.metrics.RecordSessionCreated(client.Name())
	s.log.Info("mailbox created",
		zap.String("address", session.Address),
		zap.String("provider", session.Provider),
	)
	return session, nil
}

// Fetch 获取单封邮件。
func (s *MailboxService) Fetch(ctx context.Context, address, id string) (*domain.MessageBody, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: email id is required", domain.ErrInvalidInput)
	}

	session, err := s.resolver.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	client, err := clientFor(s.providers, session)
	if err != nil {
		return nil, err
	}

	return client.FetchMessage(ctx, session.Token, id)
}

// ActiveAddresses 返回所有未过期地址。
func (s *MailboxService) ActiveAddresses(ctx context.Context) ([]string, error) {
	addresses, err := s.store.ListActiveAddresses(ctx)
	if err != nil {
		s.metrics.RecordStoreOperation("list", domain.Kind(err))
		return nil, err
	}
	s.metrics.RecordStoreOperation("list", "ok")
	return addresses, nil
}

// clientFor 返回会话所属提供商的客户端
func clientFor(providers *provider.Registry, session *domain.MailboxSession) (provider.Client, error) {
	client, err := providers.Get(session.Provider)
	if errors.Is(err, domain.ErrProviderNotAvailable) {
		return nil, &domain.StoreError{
			Backend: "session",
			Op:      "resolve",
			Kind:    domain.ErrRecordShapeMismatch,
			Err:     fmt.Errorf("no client registered for provider %q", session.Provider),
		}
	}
	return client, err
}
