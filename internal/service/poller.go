package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tempmail/disposable/internal/config"
	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/monitoring"
	"tempmail/disposable/internal/provider"
)

// PollMode 查询模式
type PollMode int

const (
	// ModeListFromOffset 立即列出一次
	ModeListFromOffset PollMode = iota
	// ModePollUntilNew 按固定间隔重复检查，直到出现新邮件或次数耗尽
	ModePollUntilNew
)

// PollState 轮询状态机的状态
type PollState int

const (
	StateIdle PollState = iota
	StatePolling
	StateFound
	StateTimedOut
)

func (s PollState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolling:
		return "Polling"
	case StateFound:
		return "Found"
	case StateTimedOut:
		return "TimedOut"
	}
	return fmt.Sprintf("PollState(%d)", int(s))
}

// PollRequest 一次查询请求，Marker 在列表模式下为 offset，在轮询模式下为 seq。
type PollRequest struct {
	Address string
	Mode    PollMode
	Marker  int
}

// PollResult 查询结果
//
// 超时与“暂无新邮件”对调用方都表现为空的 Messages，State 仅用于日志与指标。
type PollResult struct {
	Messages []domain.MessageSummary
	State    PollState
	Ticks    int
}

// ProgressFunc 在某次检查结果为空且仍有剩余次数时调用
type ProgressFunc func(tick, maxTicks int)

// PollerConfig 轮询参数
type PollerConfig struct {
	Interval time.Duration
	MaxTicks int
}

// PollerConfigFrom 从应用配置构造轮询参数
func PollerConfigFrom(cfg config.PollConfig) PollerConfig {
	return PollerConfig{Interval: cfg.Interval, MaxTicks: cfg.MaxTicks}
}

// Timeout 返回轮询上限时长
func (c PollerConfig) Timeout() time.Duration {
	return c.Interval * time.Duration(c.MaxTicks)
}

// Poller 有界的固定间隔轮询引擎
type Poller struct {
	resolver  *Resolver
	providers *provider.Registry
	cfg       PollerConfig
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewPoller 创建轮询引擎
func NewPoller(resolver *Resolver, providers *provider.Registry, cfg PollerConfig, metrics *monitoring.Metrics, log *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = 30
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		resolver:  resolver,
		providers: providers,
		cfg:       cfg,
		metrics:   metrics,
		log:       log,
	}
}

// Config 返回轮询参数
func (p *Poller) Config() PollerConfig {
	return p.cfg
}

// Run 执行一次查询。
//
// 轮询模式下第 k 次检查发生在 (k-1)·Interval，最多 MaxTicks 次；
// 任意一次提供商调用失败立即返回错误。
func (p *Poller) Run(ctx context.Context, req PollRequest, progress ProgressFunc) (*PollResult, error) {
	session, err := p.resolver.Resolve(ctx, req.Address)
	if err != nil {
		return nil, err
	}

	client, err := clientFor(p.providers, session)
	if err != nil {
		return nil, err
	}

	if req.Mode == ModeListFromOffset {
		messages, err := client.ListMessages(ctx, session.Token, req.Marker)
		if err != nil {
			return nil, err
		}
		return &PollResult{Messages: messages, State: StateIdle, Ticks: 1}, nil
	}

	result, err := p.poll(ctx, client, session, req.Marker, progress)
	if err != nil {
		p.metrics.RecordPollOutcome("Failed")
		return nil, err
	}
	p.metrics.RecordPollOutcome(result.State.String())
	p.log.Debug("poll finished",
		zap.String("address", session.Address),
		zap.Stringer("state", result.State),
		zap.Int("ticks", result.Ticks),
	)
	return result, nil
}

func (p *Poller) poll(ctx context.Context, client provider.Client, session *domain.MailboxSession, seq int, progress ProgressFunc) (*PollResult, error) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		if tick > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.metrics.RecordPollTick(client.Name())
		messages, err := client.PollOnce(ctx, session.Token, seq)
		if err != nil {
			return nil, err
		}

		if len(messages) > 0 {
			return &PollResult{Messages: messages, State: StateFound, Ticks: tick}, nil
		}

		if tick >= p.cfg.MaxTicks {
			return &PollResult{Messages: []domain.MessageSummary{}, State: StateTimedOut, Ticks: tick}, nil
		}

		if progress != nil {
			progress(tick, p.cfg.MaxTicks)
		}
	}
}
