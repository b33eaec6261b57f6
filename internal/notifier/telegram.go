// Package notifier sends human-facing lifecycle alerts to a Telegram chat
// (spec §1: an external collaborator notified of project starts, tax
// refreshes, stalls, and completion). A notifier failure is swallowed per
// the apperr.Notifier taxonomy: it never stops the tick loop.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"launchsentinel/internal/apperr"
	"launchsentinel/internal/domain"
)

const (
	sendTimeout = 10 * time.Second
	maxRetries  = 2
)

const telegramAPIBase = "https://api.telegram.org"

// Client sends messages via the Telegram Bot API.
type Client struct {
	botToken string
	chatID   string
	apiBase  string
	http     *http.Client
	log      *logrus.Entry
}

// New builds a Client for the given bot token and chat id. An empty
// botToken disables sending: every Notify* call becomes a no-op logged at
// debug level, which keeps local development free of Telegram credentials.
func New(botToken, chatID string, log *logrus.Entry) *Client {
	return &Client{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPIBase,
		http:     &http.Client{Timeout: sendTimeout},
		log:      log,
	}
}

func (c *Client) send(ctx context.Context, text string) {
	if c.botToken == "" {
		c.log.WithField("text", text).Debug("telegram disabled, skipping notification")
		return
	}
	if err := c.sendWithRetry(ctx, text); err != nil {
		wrapped := apperr.Notifier(err)
		c.log.WithError(wrapped).Warn("telegram notification failed")
	}
}

func (c *Client) sendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	backoff := 1 * time.Second
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.post(ctx, text); err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)
	payload := map[string]string{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, respBody)
	}
	return nil
}

// NotifyProjectStart announces that T0 has arrived for the selected
// project and monitoring has begun.
func (c *Client) NotifyProjectStart(ctx context.Context, p *domain.ProjectDescriptor) {
	c.send(ctx, fmt.Sprintf("🚀 <b>%s</b> (%s) launch window opened. Tracking tax collection and whale trades.", p.Name, p.Symbol))
}

// NotifyTaxUpdate reports the running tax total partway through the
// launch window.
func (c *Client) NotifyTaxUpdate(ctx context.Context, counters domain.TaxCounters, elapsedMinutes float64) {
	c.send(ctx, fmt.Sprintf("💰 Tax collected so far: %s (%.0f min elapsed)", weiToDisplay(counters.NetInflow()), elapsedMinutes))
}

// NotifyStall alerts that the buyback spend rate has stalled.
func (c *Client) NotifyStall(ctx context.Context, p *domain.ProjectDescriptor, status domain.BuybackStatus) {
	c.send(ctx, fmt.Sprintf("⚠️ <b>%s</b> buyback has stalled. Spent %s of budget, %.1f%% complete.", p.Name, weiToDisplay(status.SpentTotal), status.Progress))
}

// NotifyBuybackUpdate reports buyback progress on the publish cadence.
func (c *Client) NotifyBuybackUpdate(ctx context.Context, status domain.BuybackStatus) {
	eta := "∞"
	if status.EtaHours != nil {
		eta = fmt.Sprintf("%.1fh", *status.EtaHours)
	}
	c.send(ctx, fmt.Sprintf("🔁 Buyback progress: %.1f%%, rate %.2f/hr, eta %s", status.Progress, status.RatePerHour, eta))
}

// NotifyProjectComplete announces that the tracked project has finished
// its lifecycle (buyback budget exhausted or catalog graduation observed).
func (c *Client) NotifyProjectComplete(ctx context.Context, p *domain.ProjectDescriptor) {
	c.send(ctx, fmt.Sprintf("✅ <b>%s</b> (%s) monitoring complete.", p.Name, p.Symbol))
}

// NotifyHealth reports the RPC pool's periodic health ping (spec §4.8:
// every 60 ticks).
func (c *Client) NotifyHealth(ctx context.Context, healthy bool, latencyMS int64, pushConnected bool) {
	if healthy && pushConnected {
		c.log.WithFields(logrus.Fields{"latencyMs": latencyMS, "pushConnected": pushConnected}).Debug("health ping ok")
		return
	}
	c.send(ctx, fmt.Sprintf("🩺 Health check: rpcHealthy=%v latencyMs=%d pushConnected=%v", healthy, latencyMS, pushConnected))
}

func weiToDisplay(v *big.Int) string {
	if v == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)))
	return f.Text('f', 4)
}
