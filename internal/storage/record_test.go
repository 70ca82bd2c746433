package storage

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/disposable/internal/domain"
)

func sampleSession() *domain.MailboxSession {
	return &domain.MailboxSession{
		ID:                "sess-1",
		Address:           "abc@guerrillamailblock.com",
		CreatedAt:         time.Unix(1700000000, 0).UTC(),
		Token:             "tok123",
		Provider:          domain.ProviderGuerrillaMail,
		Alias:             "x1",
		ProviderTimestamp: 1700000000,
	}
}

func TestRecordRoundTrip(t *testing.T) {
	session := sampleSession()

	data, err := json.Marshal(RecordFromSession(session))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"_id": "sess-1",
		"createdAt": "2023-11-14T22:13:20Z",
		"name": "guerrillamail",
		"mails": [{"email_addr": "abc@guerrillamailblock.com", "email_timestamp": 1700000000, "alias": "x1", "sid_token": "tok123"}]
	}`, string(data))

	decoded, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, session, decoded)
}

func TestDecodeRecordShapeMismatch(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{name: "非JSON", data: `not-json`},
		{name: "未知提供商", data: `{"name":"mailinator","mails":[{"email_addr":"a@b","sid_token":"t"}]}`},
		{name: "缺少mails", data: `{"name":"guerrillamail","mails":[]}`},
		{name: "缺少令牌", data: `{"name":"guerrillamail","mails":[{"email_addr":"a@b"}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			session, err := DecodeRecord([]byte(tc.data))
			assert.Nil(t, session)
			assert.True(t, errors.Is(err, domain.ErrRecordShapeMismatch))
		})
	}
}

func TestExpired(t *testing.T) {
	session := sampleSession()
	ttl := time.Hour

	assert.False(t, Expired(session, session.CreatedAt.Add(3599*time.Second), ttl))
	assert.True(t, Expired(session, session.CreatedAt.Add(3600*time.Second), ttl))
}
