package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"tempmail/disposable/internal/domain"
	"tempmail/disposable/internal/provider"
)

const banner = `
 ____  _                           _     _        __  __       _ _
|  _ \(_)___ _ __   ___  ___  __ _| |__ | | ___  |  \/  | __ _(_) |
| | | | / __| '_ \ / _ \/ __|/ _' | '_ \| |/ _ \ | |\/| |/ _' | | |
| |_| | \__ \ |_) | (_) \__ \ (_| | |_) | |  __/ | |  | | (_| | | |
|____/|_|___/ .__/ \___/|___/\__,_|_.__/|_|\___| |_|  |_|\__,_|_|_|
            |_|
`

var (
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E3192")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderer 负责所有面向终端的输出
type renderer struct {
	out io.Writer
}

func (r renderer) banner() {
	fmt.Fprintln(r.out, bannerStyle.Render(banner))
}

func (r renderer) line(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r renderer) warning(msg string) {
	fmt.Fprintln(r.out, warningStyle.Render(msg))
}

func (r renderer) catalog(c *provider.Catalog) {
	rows := make([][]string, 0, len(c.Providers))
	for _, entry := range c.Providers {
		rows = append(rows, []string{entry.Name, entry.URL, formatExpiry(entry.Expires), entry.Description})
	}
	fmt.Fprintln(r.out, newTable([]string{"Provider", "URL", "Expires", "Description"}, rows))
}

// messages 输出收件箱表格，结果为空时只输出空行
func (r renderer) messages(messages []domain.MessageSummary) {
	if len(messages) == 0 {
		fmt.Fprintln(r.out)
		return
	}

	rows := make([][]string, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, []string{m.ID, m.Sender, m.Subject, formatDate(m.ReceivedAt)})
	}
	fmt.Fprintln(r.out, newTable([]string{"ID", "From", "Subject", "Date"}, rows))
}

func (r renderer) message(body *domain.MessageBody) {
	r.line("From: %s", body.Sender)
	r.line("Date: %s UTC", body.Date)
	r.line("Subject: %s", body.Subject)
	r.line("\n%s", body.Body)
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func formatExpiry(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return strconv.Itoa(int(d.Minutes())) + " min"
}
