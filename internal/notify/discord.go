package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// embedColor is the accent color for alert embeds. Red when the title signals
// an emergency, amber otherwise.
func embedColor(title string) int {
	if strings.Contains(strings.ToUpper(title), "EMERGENCY") {
		return 0xE74C3C
	}
	return 0xF1C40F
}

// DiscordSender delivers alerts through a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a sender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: sendTimeout},
	}
}

// Send posts the alert as a single embed. Discord replies 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       title,
			"description": message,
			"color":       embedColor(title),
		}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name implements Sender.
func (d *DiscordSender) Name() string { return "discord" }
