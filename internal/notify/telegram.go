package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/go-telegram/bot"
)

// TelegramChannel дублирует уведомление в Telegram, если пользователь привязал чат
type TelegramChannel struct {
	bot *bot.Bot
}

func NewTelegramChannel(token string) (*TelegramChannel, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{bot: b}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, user *model.User, n Notification) error {
	if user.TelegramChatID == nil {
		return nil
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *user.TelegramChatID,
		Text:   fmt.Sprintf("🔔 %s\n\n%s", n.Title, n.Body),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
