package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/provider"
	"tempmail/disposable/internal/service"
)

type providersResponse struct {
	Available []string                `json:"available"`
	Catalog   []provider.CatalogEntry `json:"catalog"`
}

type createMailboxRequest struct {
	Provider string `json:"provider" binding:"required"`
}

type pollResponse struct {
	Messages []domain.MessageSummary `json:"messages"`
	Ticks    int                     `json:"ticks"`
}

// listProviders 返回可用提供商与提供商目录
func (h *Handler) listProviders(c *gin.Context) {
	resp := providersResponse{Available: []string{}, Catalog: []provider.CatalogEntry{}}
	if h.providers != nil {
		resp.Available = h.providers.Names()
	}
	if h.catalog != nil {
		resp.Catalog = h.catalog.Providers
	}
	Success(c, resp)
}

// listMailboxes 返回所有未过期的邮箱地址
func (h *Handler) listMailboxes(c *gin.Context) {
	addresses, err := h.mailboxes.ActiveAddresses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if addresses == nil {
		addresses = []string{}
	}
	Success(c, addresses)
}

// createMailbox 在指定提供商创建新邮箱
func (h *Handler) createMailbox(c *gin.Context) {
	var req createMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	session, err := h.mailboxes.Create(c.Request.Context(), req.Provider)
	if err != nil {
		h.log.Warn("create mailbox failed", zap.String("provider", req.Provider), zap.Error(err))
		respondError(c, err)
		return
	}
	Created(c, session)
}

// listMessages 一次性列出 offset 之后的邮件
func (h *Handler) listMessages(c *gin.Context) {
	offset, ok := intQuery(c, "offset", MsgInvalidOffset)
	if !ok {
		return
	}
	h.runPoll(c, service.ModeListFromOffset, offset)
}

// checkMessages 轮询直到出现新邮件或超时
func (h *Handler) checkMessages(c *gin.Context) {
	seq, ok := intQuery(c, "seq", MsgInvalidSeq)
	if !ok {
		return
	}
	h.runPoll(c, service.ModePollUntilNew, seq)
}

func (h *Handler) runPoll(c *gin.Context, mode service.PollMode, marker int) {
	result, err := h.poller.Run(c.Request.Context(), service.PollRequest{
		Address: c.Param("address"),
		Mode:    mode,
		Marker:  marker,
	}, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	messages := result.Messages
	if messages == nil {
		messages = []domain.MessageSummary{}
	}
	resp := pollResponse{Messages: messages, Ticks: result.Ticks}
	if len(messages) == 0 {
		SuccessWithMsg(c, MsgNoNewMessages, resp)
		return
	}
	Success(c, resp)
}

// fetchMessage 获取单封邮件正文
func (h *Handler) fetchMessage(c *gin.Context) {
	body, err := h.mailboxes.Fetch(c.Request.Context(), c.Param("address"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, body)
}

func intQuery(c *gin.Context, key, msg string) (int, bool) {
	value, err := strconv.Atoi(c.DefaultQuery(key, "0"))
	if err != nil || value < 0 {
		BadRequest(c, msg)
		return 0, false
	}
	return value, true
}
