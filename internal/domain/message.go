package domain

import "time"

// MessageSummary 收件箱列表中的一封邮件（轮询/列表返回，不持久化）。
type MessageSummary struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"receivedAt"`
	Excerpt    string    `json:"excerpt,omitempty"`
	Read       bool      `json:"read"`
}

// MessageBody 按 ID 获取的完整邮件内容（不持久化）。
type MessageBody struct {
	ID      string `json:"id,omitempty"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
