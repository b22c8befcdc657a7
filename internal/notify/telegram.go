// Package notify pushes switch alerts to a Telegram chat and answers a few
// bot commands about the running simulation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/web3-frozen/yield-optimizer/internal/metrics"
	"github.com/web3-frozen/yield-optimizer/internal/rebalance"
	"github.com/web3-frozen/yield-optimizer/internal/sim"
)

const (
	telegramAPI = "https://api.telegram.org"
	queueSize   = 64
	pollBackoff = 5 * time.Second
)

// StatusFunc returns the simulator state shown by /status.
type StatusFunc func() sim.State

type Bot struct {
	token   string
	chatID  int64
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	status  StatusFunc
	queue   chan string
	offset  int64
	backoff time.Duration
}

func NewBot(token string, chatID int64, status StatusFunc, logger *slog.Logger) *Bot {
	return &Bot{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		status:  status,
		queue:   make(chan string, queueSize),
		backoff: pollBackoff,
	}
}

func (b *Bot) endpoint(method string) string {
	return b.baseURL + "/bot" + b.token + "/" + method
}

// SendMessage sends a text message to a Telegram chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	return nil
}

// Notify queues text for the alert chat. It never blocks; when the queue is
// full the message is dropped.
func (b *Bot) Notify(text string) bool {
	select {
	case b.queue <- text:
		return true
	default:
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// OnTick is a simulator subscriber that alerts on every switch.
func (b *Bot) OnTick(res sim.TickResult) {
	if res.Event != nil {
		b.Notify(FormatSwitch(*res.Event))
	}
}

// OnRebalance alerts on an executed scheduled rebalance.
func (b *Bot) OnRebalance(res rebalance.Result) {
	b.Notify(FormatRebalance(res))
}

// Run delivers queued alerts until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-b.queue:
			if err := b.SendMessage(ctx, b.chatID, text); err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.NotificationsTotal.WithLabelValues("error").Inc()
				b.logger.Error("send notification", "error", err)
				continue
			}
			metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		}
	}
}

// Listen long-polls for bot commands until ctx is done.
func (b *Bot) Listen(ctx context.Context) {
	b.logger.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.poll(ctx)
		}
	}
}

func (b *Bot) poll(ctx context.Context) {
	url := fmt.Sprintf("%s?offset=%d&timeout=30", b.endpoint("getUpdates"), b.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		b.logger.Error("create poll request", "error", err)
		return
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("poll updates", "error", err)
		b.wait(ctx)
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      []struct {
			UpdateID int64 `json:"update_id"`
			Message  *struct {
				Chat struct {
					ID int64 `json:"id"`
				} `json:"chat"`
				Text string `json:"text"`
			} `json:"message"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		b.logger.Error("decode updates", "status", resp.StatusCode, "error", err)
		b.wait(ctx)
		return
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		b.logger.Error("poll updates rejected", "status", resp.StatusCode, "description", result.Description)
		b.wait(ctx)
		return
	}

	for _, u := range result.Result {
		b.offset = u.UpdateID + 1
		if u.Message == nil {
			continue
		}
		chatID := u.Message.Chat.ID
		if err := b.SendMessage(ctx, chatID, b.reply(strings.TrimSpace(u.Message.Text))); err != nil {
			b.logger.Error("reply to command", "chat_id", chatID, "error", err)
		}
	}
}

// wait pauses for the backoff interval or until ctx is done.
func (b *Bot) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.backoff):
	}
}

func (b *Bot) reply(text string) string {
	switch text {
	case "/start", "/help":
		return "🤖 <b>Yield Optimizer Bot</b>\n\n" +
			"Commands:\n" +
			"/status: current position and best protocol\n" +
			"/help: show this message\n\n" +
			"Switch alerts are posted here automatically."
	case "/status":
		if b.status == nil {
			return "Simulator not available."
		}
		return FormatStatus(b.status())
	default:
		return "Unknown command. Send /help for available commands."
	}
}
