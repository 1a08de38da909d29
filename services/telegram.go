package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegramSender is the part of tgbotapi.BotAPI the channel uses
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel pushes HTML messages to a Telegram chat
type TelegramChannel struct {
	bot    telegramSender
	chatID int64
	logger *zap.Logger
}

// NewTelegramChannel authorizes the bot, retrying a few times
func NewTelegramChannel(token, chatID string, timeout time.Duration, logger *zap.Logger) (*TelegramChannel, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing chat ID: %w", err)
	}

	client := &http.Client{Timeout: timeout}
	bot, err := connectTelegram(token, client, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))
	return newTelegramChannel(bot, id, logger), nil
}

func newTelegramChannel(bot telegramSender, chatID int64, logger *zap.Logger) *TelegramChannel {
	return &TelegramChannel{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}
}

// connectTelegram tests the bot token with retry logic
func connectTelegram(token string, client *http.Client, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		logger.Info("Testing Telegram connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		// NewBotAPIWithClient calls getMe
		bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
		if err == nil {
			return bot, nil
		}
		lastErr = err

		logger.Warn("Telegram connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return nil, fmt.Errorf("failed to connect to Telegram after %d attempts: %w", maxRetries, lastErr)
}

func (tc *TelegramChannel) Name() string { return "telegram" }

// Send posts message to the configured chat
func (tc *TelegramChannel) Send(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(tc.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	// BotAPI has no context support; the HTTP client timeout bounds the call
	done := make(chan error, 1)
	go func() {
		_, err := tc.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("error sending telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send aborted: %w", ctx.Err())
	}
}
