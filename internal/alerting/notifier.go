package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fund-nav-monitor/internal/pipeline"
)

// Notification 封装一次运行后的建议摘要。
type Notification struct {
	RunAt   time.Time
	Results []pipeline.Result
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Time("run_at", note.RunAt).Int("funds", len(note.Results)).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Fund NAV Advisory]\n")
	builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunAt.Format("2006-01-02 15:04:05")))
	for _, res := range note.Results {
		if res.Snapshot == nil {
			builder.WriteString(fmt.Sprintf("%s: data retrieval failed\n", res.Code))
			continue
		}
		line := fmt.Sprintf("%s: %s (NAV %s", res.Code, res.Advice.Label(), res.Snapshot.LatestValue.StringFixed(4))
		if res.Snapshot.RSI != nil {
			line += fmt.Sprintf(", RSI %.2f", *res.Snapshot.RSI)
		}
		if res.Snapshot.MARatio != nil {
			line += fmt.Sprintf(", NAV/MA %.2f", *res.Snapshot.MARatio)
		}
		builder.WriteString(line + ")\n")
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
