// Package guerrilla 实现 guerrillamail ajax 接口的客户端。
package guerrilla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/monitoring"
	"tempmail/disposable/internal/provider"
)

const (
	// DefaultBaseURL guerrillamail ajax 接口地址
	DefaultBaseURL = "https://api.guerrillamail.com/ajax.php"

	sessionCookie = "PHPSESSID"
	maxBodyBytes  = 4 << 20
)

// Client guerrillamail 客户端
type Client struct {
	baseURL    string
	agent      string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *monitoring.Metrics
	log        *zap.Logger
	now        func() time.Time
}

var _ provider.Client = (*Client)(nil)

// Option 配置客户端
type Option func(*Client)

// WithBaseURL 设置接口地址
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithUserAgent 设置创建邮箱时上报的 agent 参数
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if agent != "" {
			c.agent = agent
		}
	}
}

// WithHTTPClient 设置 HTTP 客户端，nil 时保留默认客户端
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout 设置单次请求超时
//
// 在客户端副本上修改，调用方传入的共享客户端不受影响。
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.httpClient
			clone.Timeout = timeout
			c.httpClient = &clone
		}
	}
}

// WithRateLimit 设置请求速率，limit <= 0 表示不限速
func WithRateLimit(limit float64, burst int) Option {
	return func(c *Client) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

// WithMetrics 启用请求指标
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithClock 设置时间来源（提供商未返回时间戳时使用）
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New 创建 guerrillamail 客户端
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		agent:      "Mozilla",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        zap.NewNop(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name 返回提供商标识
func (c *Client) Name() string {
	return domain.ProviderGuerrillaMail
}

// CreateMailbox 分配新地址
//
// 令牌优先取响应体中的 sid_token，否则取 PHPSESSID Cookie。
func (c *Client) CreateMailbox(ctx context.Context) (*domain.MailboxSession, error) {
	const op = "get_email_address"

	params := url.Values{}
	params.Set("ip", "127.0.0.1")
	params.Set("agent", c.agent)

	body, resp, err := c.call(ctx, op, params, "")
	if err != nil {
		return nil, err
	}

	var payload addressResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.shapeError(op, err)
	}

	token := payload.SidToken
	if token == "" {
		for _, cookie := range resp.Cookies() {
			if cookie.Name == sessionCookie && cookie.Value != "" {
				token = cookie.Value
				break
			}
		}
	}

	session, err := domain.NewMailboxSession(c.Name(), domain.Allocation{
		Address:   payload.EmailAddr,
		Timestamp: int64(payload.EmailTimestamp),
		Alias:     payload.Alias,
		Token:     token,
	}, c.now())
	if err != nil {
		return nil, c.shapeError(op, err)
	}

	c.log.Debug("mailbox allocated", zap.String("address", session.Address))
	return session, nil
}

// ListMessages 列出 offset 之后的邮件
func (c *Client) ListMessages(ctx context.Context, token string, offset int) ([]domain.MessageSummary, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sid_token", token)
	params.Set("seq", "1")

	return c.list(ctx, "get_email_list", params, token)
}

// PollOnce 检查序号 seq 之后的新邮件
func (c *Client) PollOnce(ctx context.Context, token string, seq int) ([]domain.MessageSummary, error) {
	params := url.Values{}
	params.Set("seq", strconv.Itoa(seq))
	params.Set("sid_token", token)

	return c.list(ctx, "check_email", params, token)
}

// FetchMessage 获取单封邮件，提供商返回 false 时视为不存在
func (c *Client) FetchMessage(ctx context.Context, token, id string) (*domain.MessageBody, error) {
	const op = "fetch_email"

	params := url.Values{}
	params.Set("email_id", id)
	params.Set("sid_token", token)

	body, _, err := c.call(ctx, op, params, token)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	var payload mailBody
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, c.shapeError(op, err)
	}

	messageID := string(payload.MailID)
	if messageID == "" {
		messageID = id
	}

	return &domain.MessageBody{
		ID:      messageID,
		Sender:  payload.MailFrom,
		Date:    payload.MailDate,
		Subject: payload.MailSubject,
		Body:    payload.MailBody,
	}, nil
}

func (c *Client) list(ctx context.Context, op string, params url.Values, token string) ([]domain.MessageSummary, error) {
	body, _, err := c.call(ctx, op, params, token)
	if err != nil {
		return nil, err
	}

	var payload listResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.shapeError(op, err)
	}
	if payload.List == nil {
		return nil, c.shapeError(op, fmt.Errorf("response has no list field"))
	}

	messages := make([]domain.MessageSummary, 0, len(*payload.List))
	for _, item := range *payload.List {
		messages = append(messages, item.summary())
	}
	return messages, nil
}

// call 发送 GET 请求并读取响应体
func (c *Client) call(ctx context.Context, op string, params url.Values, token string) ([]byte, *http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	params.Set("f", op)
	endpoint := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "transport_error", start)
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, &domain.ProviderError{Provider: c.Name(), Op: op, Kind: domain.ErrProviderUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, "http_"+strconv.Itoa(resp.StatusCode), start)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, nil, &domain.ProviderError{Provider: c.Name(), Op: op, StatusCode: resp.StatusCode, Kind: domain.ErrProviderUnavailable}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(op, "read_error", start)
		return nil, nil, &domain.ProviderError{Provider: c.Name(), Op: op, Kind: domain.ErrProviderUnavailable, Err: err}
	}

	c.observe(op, "ok", start)
	c.log.Debug("provider request completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return body, resp, nil
}

func (c *Client) observe(op, outcome string, start time.Time) {
	c.metrics.RecordProviderRequest(c.Name(), op, outcome, time.Since(start))
}

func (c *Client) shapeError(op string, err error) error {
	return &domain.ProviderError{Provider: c.Name(), Op: op, Kind: domain.ErrUnexpectedResponseShape, Err: err}
}
