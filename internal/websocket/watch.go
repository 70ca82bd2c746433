package websocket

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/service"
)

const writeWait = 10 * time.Second

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			return false
		},
	}
}

// EventType WebSocket 事件类型
type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

// Event 推送给客户端的事件
type Event struct {
	Type      EventType               `json:"type"`
	Address   string                  `json:"address"`
	Tick      int                     `json:"tick,omitempty"`
	MaxTicks  int                     `json:"maxTicks,omitempty"`
	Messages  []domain.MessageSummary `json:"messages,omitempty"`
	Kind      string                  `json:"kind,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// PollRunner 执行一次轮询，*service.Poller 实现该接口
type PollRunner interface {
	Run(ctx context.Context, req service.PollRequest, progress service.ProgressFunc) (*service.PollResult, error)
}

// Watcher 将一次 poll-until-new 查询的进度通过 WebSocket 推送给客户端
type Watcher struct {
	runner   PollRunner
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWatcher 创建 Watcher，allowedOrigins 为空时允许所有来源
func NewWatcher(runner PollRunner, allowedOrigins []string, log *zap.Logger) *Watcher {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		runner:   runner,
		upgrader: upgraderFactory(allowedOrigins),
		log:      log,
	}
}

// Handle 处理 GET /ws/mailboxes/:address/watch?seq=
//
// 连接建立后每个空结果推送一次 progress，结束时推送 result 或 error 并关闭连接。
func (w *Watcher) Handle(c *gin.Context) {
	address := c.Param("address")
	seq, err := strconv.Atoi(c.DefaultQuery("seq", "0"))
	if err != nil || seq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": "seq 参数无效"})
		return
	}

	conn, err := w.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		w.log.Warn("failed to upgrade connection",
			zap.Error(err),
			zap.String("origin", c.Request.Header.Get("Origin")),
			zap.String("remote_addr", c.ClientIP()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go w.readPump(conn, cancel)

	progress := func(tick, maxTicks int) {
		w.send(conn, Event{Type: EventProgress, Address: address, Tick: tick, MaxTicks: maxTicks})
	}

	result, err := w.runner.Run(ctx, service.PollRequest{
		Address: address,
		Mode:    service.ModePollUntilNew,
		Marker:  seq,
	}, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.log.Debug("watch cancelled by client", zap.String("address", address))
			return
		}
		w.send(conn, Event{Type: EventError, Address: address, Kind: domain.Kind(err), Error: err.Error()})
		w.close(conn)
		return
	}

	w.send(conn, Event{
		Type:     EventResult,
		Address:  address,
		Tick:     result.Ticks,
		Messages: result.Messages,
	})
	w.close(conn)
}

// readPump 读取并丢弃客户端消息，连接断开时取消轮询
func (w *Watcher) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (w *Watcher) send(conn *websocket.Conn, event Event) {
	event.Timestamp = time.Now().UTC()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		w.log.Debug("failed to write websocket event", zap.Error(err), zap.String("type", string(event.Type)))
	}
}

func (w *Watcher) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
