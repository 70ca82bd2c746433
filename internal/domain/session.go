package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderGuerrillaMail guerrillamail 提供商标识（同时也是存储记录中的 name 字段）
const ProviderGuerrillaMail = "guerrillamail"

// knownProviders 存储层可以解码的提供商集合
var knownProviders = map[string]struct{}{
	ProviderGuerrillaMail: {},
}

// KnownProvider 判断提供商名称是否有对应的记录解码器。
func KnownProvider(name string) bool {
	_, ok := knownProviders[name]
	return ok
}

// Allocation 提供商分配新地址时返回的原始字段。
type Allocation struct {
	Address   string // 新邮箱地址
	Timestamp int64  // 提供商给出的创建时间（Unix 秒），0 表示未提供
	Alias     string // 提供商别名
	Token     string // 会话令牌（来自响应体或 Cookie）
}

// MailboxSession 表示一个临时邮箱会话：地址与访问该邮箱所需的会话令牌。
//
// 创建后 Address 与 Token 不再修改。
type MailboxSession struct {
	ID                string    `json:"id,omitempty"` // 存储层分配，持久化前为空
	Address           string    `json:"address"`
	CreatedAt         time.Time `json:"createdAt"`
	Token             string    `json:"-"`
	Provider          string    `json:"provider"`
	Alias             string    `json:"alias,omitempty"`
	ProviderTimestamp int64     `json:"providerTimestamp,omitempty"`
}

// NewMailboxSession 根据提供商的分配结果组装会话。
//
// 提供商给出时间戳时以其为 CreatedAt，否则使用 now。
func NewMailboxSession(provider string, alloc Allocation, now time.Time) (*MailboxSession, error) {
	address := NormalizeAddress(alloc.Address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty email address", ErrUnexpectedResponseShape)
	}
	if alloc.Token == "" {
		return nil, fmt.Errorf("%w: no session token in body or cookie", ErrUnexpectedResponseShape)
	}

	createdAt := now.UTC()
	if alloc.Timestamp > 0 {
		createdAt = time.Unix(alloc.Timestamp, 0).UTC()
	}

	return &MailboxSession{
		Address:           address,
		CreatedAt:         createdAt,
		Token:             alloc.Token,
		Provider:          provider,
		Alias:             alloc.Alias,
		ProviderTimestamp: alloc.Timestamp,
	}, nil
}

// ExpiresAt 返回会话在给定 TTL 下的过期时间。
func (s *MailboxSession) ExpiresAt(ttl time.Duration) time.Time {
	return s.CreatedAt.Add(ttl)
}

// NormalizeAddress 统一邮箱地址格式（去空白、小写）。
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
