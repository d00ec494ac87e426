// Package telegram sends collection value change digests via the Telegram Bot API.
// Ranked value changes are rendered as a MarkdownV2 message and delivered with
// linear-backoff retries.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/models"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client. It contacts the Bot API to
// verify the token.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send delivers a digest of value changes. An empty list sends nothing.
func (c *Client) Send(ctx context.Context, changes []models.ValueChange) error {
	if len(changes) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(c.chatID, formatMessage(changes))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			logger.Info("Sent value change digest (%d changes)", len(changes))
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders changes into a MarkdownV2 message
func formatMessage(changes []models.ValueChange) string {
	var b strings.Builder
	b.WriteString("📊 *Collection Value Changes*\n\n")
	b.WriteString(fmt.Sprintf("📅 Detected: %s\n\n",
		escapeMarkdownV2(changes[0].DetectedAt.Format("2006-01-02 15:04:05"))))

	for i, change := range changes {
		directionEmoji := "📈"
		sign := "+"
		if change.Direction == "decrease" {
			directionEmoji = "📉"
			sign = "-"
		}

		pct := escapeMarkdownV2(fmt.Sprintf("%s%.1f%%", sign, change.Magnitude()*100))
		b.WriteString(fmt.Sprintf("%d\\. %s\n", i+1, escapeMarkdownV2(change.Name)))
		b.WriteString(fmt.Sprintf("   %s Change: *%s* \\(%s → %s\\)\n",
			directionEmoji, pct,
			escapeMarkdownV2(formatDollars(change.OldValue)),
			escapeMarkdownV2(formatDollars(change.NewValue))))
		if change.Confidence != "" {
			b.WriteString(fmt.Sprintf("   🎯 Confidence: %s\n", escapeMarkdownV2(string(change.Confidence))))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// formatDollars renders a value as "$1,234.50".
func formatDollars(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
