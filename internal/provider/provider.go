// Package provider 定义临时邮箱提供商的客户端接口与注册表。
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tempmail/disposable/internal/domain"
)

// Client 是单个提供商的远程操作集合。
//
// 所有操作在本地无副作用，可独立重试。
type Client interface {
	// Name 返回提供商标识，同时作为会话记录中的 name 字段。
	Name() string
	// CreateMailbox 分配一个新地址。
	CreateMailbox(ctx context.Context) (*domain.MailboxSession, error)
	// ListMessages 列出 offset 之后的邮件，可能为空。
	ListMessages(ctx context.Context, token string, offset int) ([]domain.MessageSummary, error)
	// PollOnce 检查序号 seq 之后的新邮件，可能为空。
	PollOnce(ctx context.Context, token string, seq int) ([]domain.MessageSummary, error)
	// FetchMessage 获取单封邮件，ID 未知时返回 domain.ErrNotFound。
	FetchMessage(ctx context.Context, token, id string) (*domain.MessageBody, error)
}

// Registry 按名称查找提供商客户端
type Registry struct {
	clients map[string]Client
}

// NewRegistry 注册给定的客户端
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

// Get 返回名称对应的客户端，未注册时返回 domain.ErrProviderNotAvailable。
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotAvailable, name)
	}
	return c, nil
}

// Names 返回已注册的提供商名称（字母序）
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
