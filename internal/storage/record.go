package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"tempmail/disposable/internal/domain"
)

// Record 是会话的持久化文档格式。
//
// Redis 原样保存该 JSON，SQL 后端将 Mails[0] 展开为一行。
type Record struct {
	ID        string      `json:"_id,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Name      string      `json:"name"`
	Mails     []MailEntry `json:"mails"`
}

// MailEntry 保存提供商分配的原始字段。
type MailEntry struct {
	EmailAddr      string `json:"email_addr"`
	EmailTimestamp int64  `json:"email_timestamp"`
	Alias          string `json:"alias"`
	SidToken       string `json:"sid_token"`
}

// RecordFromSession 将会话转换为持久化记录。
func RecordFromSession(session *domain.MailboxSession) Record {
	return Record{
		ID:        session.ID,
		CreatedAt: session.CreatedAt.UTC(),
		Name:      session.Provider,
		Mails: []MailEntry{{
			EmailAddr:      session.Address,
			EmailTimestamp: session.ProviderTimestamp,
			Alias:          session.Alias,
			SidToken:       session.Token,
		}},
	}
}

// Session 将记录还原为会话。
//
// 未知提供商或缺少字段时返回 domain.ErrRecordShapeMismatch。
func (r Record) Session() (*domain.MailboxSession, error) {
	if !domain.KnownProvider(r.Name) {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrRecordShapeMismatch, r.Name)
	}
	if len(r.Mails) == 0 {
		return nil, fmt.Errorf("%w: record has no mails entry", domain.ErrRecordShapeMismatch)
	}

	mail := r.Mails[0]
	if mail.EmailAddr == "" || mail.SidToken == "" {
		return nil, fmt.Errorf("%w: mails entry missing address or token", domain.ErrRecordShapeMismatch)
	}

	return &domain.MailboxSession{
		ID:                r.ID,
		Address:           domain.NormalizeAddress(mail.EmailAddr),
		CreatedAt:         r.CreatedAt.UTC(),
		Token:             mail.SidToken,
		Provider:          r.Name,
		Alias:             mail.Alias,
		ProviderTimestamp: mail.EmailTimestamp,
	}, nil
}

// DecodeRecord 解析 JSON 记录并还原会话。
func DecodeRecord(data []byte) (*domain.MailboxSession, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecordShapeMismatch, err)
	}
	return record.Session()
}

// Expired 判断会话在 now 时刻是否已过期（CreatedAt+TTL 及之后视为过期）。
func Expired(session *domain.MailboxSession, now time.Time, ttl time.Duration) bool {
	return !now.Before(session.ExpiresAt(ttl))
}
