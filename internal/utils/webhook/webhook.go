package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// Client pings heartbeat URLs of an external uptime monitor.
type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

func New(logger *logger.Logger) *Client {
	return &Client{
		http:   resty.New().SetTimeout(10 * time.Second),
		logger: logger,
	}
}

// CallUptimeWebhook issues a GET and only logs failures; an empty URL is a no-op.
func (c *Client) CallUptimeWebhook(ctx context.Context, webhookURL string) {
	if webhookURL == "" {
		return
	}

	resp, err := c.http.R().SetContext(ctx).Get(webhookURL)
	if err != nil {
		c.logger.Error("Failed to call uptime webhook", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return
	}
	if resp.IsError() {
		c.logger.Error("Uptime webhook rejected heartbeat", map[string]string{
			"url":         webhookURL,
			"status_code": resp.Status(),
		})
		return
	}

	c.logger.Debug("Successfully called uptime webhook", map[string]string{
		"url":         webhookURL,
		"status_code": resp.Status(),
	})
}
