package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// Discord embed limits, in characters.
const (
	discordTitleMax       = 256
	discordDescriptionMax = 4096
)

// DiscordSender posts alerts to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	secret     string // webhook token, the last path segment
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for webhookURL, of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordSender(webhookURL string) *DiscordSender {
	var secret string
	if u, err := url.Parse(webhookURL); err == nil && strings.Contains(u.Path, "/webhooks/") {
		secret = path.Base(u.Path)
	}
	return &DiscordSender{
		webhookURL: webhookURL,
		secret:     secret,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send posts title and message as an embed, each truncated to Discord's
// limit on a character boundary.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(discordPayload{
		Username: "tokenarb",
		Embeds: []discordEmbed{{
			Title:       truncateRunes(title, discordTitleMax),
			Description: truncateRunes(message, discordDescriptionMax),
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", redactURL(err, d.secret))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", redactURL(err, d.secret))
	}
	defer resp.Body.Close()

	// 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }

// truncateRunes cuts s to at most limit characters, marking the cut with an
// ellipsis. It never splits a multi-byte character.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	const ellipsis = "..."
	keep := limit - len(ellipsis)
	for i := range s {
		if keep == 0 {
			return s[:i] + ellipsis
		}
		keep--
	}
	return s
}

// redactURL scrubs secret from the URL carried by a transport error. The
// error chain is kept intact.
func redactURL(err error, secret string) error {
	var uerr *url.Error
	if secret == "" || !errors.As(err, &uerr) {
		return err
	}
	uerr.URL = strings.ReplaceAll(uerr.URL, secret, "[REDACTED]")
	return err
}
