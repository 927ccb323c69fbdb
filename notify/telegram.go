package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// BaseURL of the Bot API. Default: https://api.telegram.org.
	BaseURL string
	// PerSecond caps outgoing messages. Default: 1.
	PerSecond float64
	Timeout   time.Duration
}

// Telegram sends plain-text messages through the Bot API sendMessage method.
type Telegram struct {
	config  TelegramConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewTelegram creates a Telegram transport.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Telegram{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), 1),
	}
}

// Configured reports whether the transport can send.
func (t *Telegram) Configured() bool {
	return t != nil && t.config.BotToken != "" && t.config.ChatID != ""
}

type sendMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Configured() {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return &ErrSendFailed{Transport: "telegram", Recipient: t.config.ChatID, Cause: err}
	}
	if err := t.post(ctx, text); err != nil {
		return &ErrSendFailed{Transport: "telegram", Recipient: t.config.ChatID, Cause: err}
	}
	return nil
}

func (t *Telegram) post(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessage{ChatID: t.config.ChatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(t.config.BaseURL, "/") + "/bot" + t.config.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		return fmt.Errorf("sendMessage: %s", redact(err.Error(), t.config.BotToken))
	}
	defer resp.Body.Close()

	var out apiResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("sendMessage: http %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
