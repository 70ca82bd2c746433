package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tempmail/disposable/internal/domain"
)

func newTestPoller(f *fixture, interval time.Duration, maxTicks int) *Poller {
	return NewPoller(f.resolver, f.registry, PollerConfig{Interval: interval, MaxTicks: maxTicks}, nil, nil)
}

func TestPoller_ListFromOffset(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "abc@x.com")
	messages := []domain.MessageSummary{{ID: "1", Subject: "Welcome"}}
	f.provider.On("ListMessages", mock.Anything, "tok-abc@x.com", 0).Return(messages, nil).Once()

	result, err := newTestPoller(f, time.Millisecond, 30).Run(context.Background(), PollRequest{
		Address: "abc@x.com",
		Mode:    ModeListFromOffset,
		Marker:  0,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, messages, result.Messages)
	assert.Equal(t, StateIdle, result.State)
	f.provider.AssertNumberOfCalls(t, "ListMessages", 1)
	f.provider.AssertNotCalled(t, "PollOnce", mock.Anything, mock.Anything, mock.Anything)
}

func TestPoller_PollUntilNew(t *testing.T) {
	ctx := context.Background()

	t.Run("始终为空时恰好调用MaxTicks次后超时", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "abc@x.com")
		f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 0).Return([]domain.MessageSummary{}, nil)

		var progress []int
		result, err := newTestPoller(f, time.Millisecond, 30).Run(ctx, PollRequest{
			Address: "abc@x.com",
			Mode:    ModePollUntilNew,
		}, func(tick, maxTicks int) {
			assert.Equal(t, 30, maxTicks)
			progress = append(progress, tick)
		})

		require.NoError(t, err)
		assert.NotNil(t, result.Messages)
		assert.Empty(t, result.Messages)
		assert.Equal(t, StateTimedOut, result.State)
		assert.Equal(t, 30, result.Ticks)
		f.provider.AssertNumberOfCalls(t, "PollOnce", 30)
		assert.Len(t, progress, 29)
	})

	t.Run("第k次返回邮件时立即结束", func(t *testing.T) {
		for _, k := range []int{1, 4, 30} {
			f := newFixture(t)
			f.seed(t, "abc@x.com")
			found := []domain.MessageSummary{{ID: "7", Subject: "Code"}}
			if k > 1 {
				f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 5).Return([]domain.MessageSummary{}, nil).Times(k - 1)
			}
			f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 5).Return(found, nil).Once()

			result, err := newTestPoller(f, time.Millisecond, 30).Run(ctx, PollRequest{
				Address: "abc@x.com",
				Mode:    ModePollUntilNew,
				Marker:  5,
			}, nil)

			require.NoError(t, err)
			assert.Equal(t, found, result.Messages)
			assert.Equal(t, StateFound, result.State)
			assert.Equal(t, k, result.Ticks)
			f.provider.AssertNumberOfCalls(t, "PollOnce", k)
		}
	})

	t.Run("提供商失败立即返回", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "abc@x.com")
		f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 0).Return([]domain.MessageSummary{}, nil).Twice()
		f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 0).
			Return(nil, &domain.ProviderError{Provider: "guerrillamail", Op: "check_email", Kind: domain.ErrProviderUnavailable}).Once()

		result, err := newTestPoller(f, time.Millisecond, 30).Run(ctx, PollRequest{
			Address: "abc@x.com",
			Mode:    ModePollUntilNew,
		}, nil)

		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
		f.provider.AssertNumberOfCalls(t, "PollOnce", 3)
	})

	t.Run("检查间隔均匀", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "abc@x.com")
		f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 0).Return([]domain.MessageSummary{}, nil)

		interval := 20 * time.Millisecond
		start := time.Now()
		_, err := newTestPoller(f, interval, 4).Run(ctx, PollRequest{Address: "abc@x.com", Mode: ModePollUntilNew}, nil)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, time.Since(start), 3*interval)
		f.provider.AssertNumberOfCalls(t, "PollOnce", 4)
	})

	t.Run("上下文取消", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "abc@x.com")
		f.provider.On("PollOnce", mock.Anything, "tok-abc@x.com", 0).Return([]domain.MessageSummary{}, nil)

		cancelCtx, cancel := context.WithCancel(ctx)
		_, err := newTestPoller(f, time.Hour, 30).Run(cancelCtx, PollRequest{Address: "abc@x.com", Mode: ModePollUntilNew}, func(int, int) {
			cancel()
		})

		assert.ErrorIs(t, err, context.Canceled)
		f.provider.AssertNumberOfCalls(t, "PollOnce", 1)
	})

	t.Run("未创建的地址不调用提供商", func(t *testing.T) {
		f := newFixture(t)

		_, err := newTestPoller(f, time.Millisecond, 30).Run(ctx, PollRequest{Address: "unknown@x.com", Mode: ModePollUntilNew}, nil)
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
		f.provider.AssertNotCalled(t, "PollOnce", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPollState_String(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Polling", StatePolling.String())
	assert.Equal(t, "Found", StateFound.String())
	assert.Equal(t, "TimedOut", StateTimedOut.String())
}

func TestPollerDefaults(t *testing.T) {
	p := NewPoller(nil, nil, PollerConfig{}, nil, nil)
	assert.Equal(t, 10*time.Second, p.Config().Interval)
	assert.Equal(t, 30, p.Config().MaxTicks)
	assert.Equal(t, 5*time.Minute, p.Config().Timeout())
}
