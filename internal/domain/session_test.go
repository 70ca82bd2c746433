package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailboxSession(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("使用提供商时间戳", func(t *testing.T) {
		s, err := NewMailboxSession(ProviderGuerrillaMail, Allocation{
			Address:   "abc@guerrillamail.com",
			Timestamp: 1700000000,
			Alias:     "abc",
			Token:     "tok123",
		}, now)

		require.NoError(t, err)
		assert.Equal(t, "abc@guerrillamail.com", s.Address)
		assert.Equal(t, "tok123", s.Token)
		assert.Equal(t, ProviderGuerrillaMail, s.Provider)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), s.CreatedAt)
		assert.Empty(t, s.ID)
	})

	t.Run("无时间戳时使用当前时间", func(t *testing.T) {
		s, err := NewMailboxSession(ProviderGuerrillaMail, Allocation{
			Address: "  ABC@Guerrillamail.com ",
			Token:   "tok",
		}, now)

		require.NoError(t, err)
		assert.Equal(t, now, s.CreatedAt)
		assert.Equal(t, "abc@guerrillamail.com", s.Address)
		assert.Equal(t, now.Add(time.Hour), s.ExpiresAt(time.Hour))
	})

	t.Run("缺少令牌失败", func(t *testing.T) {
		_, err := NewMailboxSession(ProviderGuerrillaMail, Allocation{Address: "a@b.c"}, now)
		assert.ErrorIs(t, err, ErrUnexpectedResponseShape)
	})

	t.Run("缺少地址失败", func(t *testing.T) {
		_, err := NewMailboxSession(ProviderGuerrillaMail, Allocation{Token: "tok"}, now)
		assert.ErrorIs(t, err, ErrUnexpectedResponseShape)
	})
}

func TestKnownProvider(t *testing.T) {
	assert.True(t, KnownProvider("guerrillamail"))
	assert.False(t, KnownProvider("mailinator"))
	assert.False(t, KnownProvider(""))
}

func TestTypedErrors(t *testing.T) {
	cause := errors.New("connection refused")

	perr := &ProviderError{Provider: "guerrillamail", Op: "check_email", Kind: ErrProviderUnavailable, Err: cause}
	wrapped := fmt.Errorf("poll: %w", perr)
	assert.ErrorIs(t, wrapped, ErrProviderUnavailable)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, ErrUnexpectedResponseShape)
	assert.Equal(t, "ProviderUnavailable", Kind(wrapped))
	assert.Contains(t, perr.Error(), "connection refused")

	status := &ProviderError{Provider: "guerrillamail", Op: "fetch_email", StatusCode: 502, Kind: ErrProviderUnavailable}
	assert.Contains(t, status.Error(), "status 502")

	serr := &StoreError{Backend: "redis", Op: "find", Kind: ErrStoreUnavailable, Err: cause}
	assert.ErrorIs(t, serr, ErrStoreUnavailable)
	assert.Equal(t, "StoreUnavailable", Kind(serr))

	assert.Equal(t, "SessionNotFound", Kind(fmt.Errorf("%w: x@y.z", ErrSessionNotFound)))
	assert.Equal(t, "Internal", Kind(cause))
	assert.Equal(t, "none", Kind(nil))
}
