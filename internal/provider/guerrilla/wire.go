package guerrilla

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"tempmail/disposable/internal/domain"
)

type addressResponse struct {
	EmailAddr      string  `json:"email_addr"`
	EmailTimestamp flexInt `json:"email_timestamp"`
	Alias          string  `json:"alias"`
	SidToken       string  `json:"sid_token"`
}

type listResponse struct {
	List *[]mailItem `json:"list"`
}

type mailItem struct {
	MailID        flexString `json:"mail_id"`
	MailFrom      string     `json:"mail_from"`
	MailSubject   string     `json:"mail_subject"`
	MailExcerpt   string     `json:"mail_excerpt"`
	MailTimestamp flexInt    `json:"mail_timestamp"`
	MailRead      flexInt    `json:"mail_read"`
}

func (m mailItem) summary() domain.MessageSummary {
	return domain.MessageSummary{
		ID:         string(m.MailID),
		Sender:     m.MailFrom,
		Subject:    m.MailSubject,
		ReceivedAt: time.Unix(int64(m.MailTimestamp), 0).UTC(),
		Excerpt:    m.MailExcerpt,
		Read:       m.MailRead != 0,
	}
}

type mailBody struct {
	MailID      flexString `json:"mail_id"`
	MailFrom    string     `json:"mail_from"`
	MailDate    string     `json:"mail_date"`
	MailSubject string     `json:"mail_subject"`
	MailBody    string     `json:"mail_body"`
}

// flexInt 接受 JSON 数字或数字字符串
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", data, err)
	}
	*f = flexInt(n)
	return nil
}

// flexString 接受 JSON 字符串或数字
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
