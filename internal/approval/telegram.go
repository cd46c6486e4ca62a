package approval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

// TelegramGate routes approval requests to a human through Telegram
// inline-keyboard buttons and blocks until a button is pressed or the
// context expires.
type TelegramGate struct {
	Bot      *tgbotapi.BotAPI
	ChatID   int64
	channels map[string]chan ports.UserAction
	mu       sync.Mutex
}

func NewTelegramGate(token, chatIDStr string) (*TelegramGate, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}

	gate := &TelegramGate{
		Bot:      bot,
		ChatID:   chatID,
		channels: make(map[string]chan ports.UserAction),
	}

	go gate.listen()
	return gate, nil
}

var _ ports.Approval = (*TelegramGate)(nil)

func (g *TelegramGate) listen() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := g.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery == nil {
			continue
		}

		callback := update.CallbackQuery
		action := ports.UserAction(callback.Data)

		g.mu.Lock()
		for msgID, ch := range g.channels {
			ch <- action
			delete(g.channels, msgID)

			g.Bot.Request(tgbotapi.NewCallback(callback.ID, "Decision recorded: "+string(action)))

			edit := tgbotapi.NewEditMessageReplyMarkup(g.ChatID, callback.Message.MessageID,
				tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
			g.Bot.Send(edit)
			break
		}
		g.mu.Unlock()
	}
}

func (g *TelegramGate) Confirm(ctx context.Context, title, body string) (ports.UserAction, error) {
	msgText := fmt.Sprintf("*[%s]*\n\n%s", escapeMarkdown(title), escapeMarkdown(body))
	msg := tgbotapi.NewMessage(g.ChatID, msgText)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", string(ports.ActionApprove)),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Redo", string(ports.ActionRegenerate)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Skip", string(ports.ActionSkip)),
		),
	)

	sentMsg, err := g.Bot.Send(msg)
	if err != nil {
		return ports.ActionSkip, err
	}

	respCh := make(chan ports.UserAction)
	msgKey := strconv.Itoa(sentMsg.MessageID)

	g.mu.Lock()
	g.channels[msgKey] = respCh
	g.mu.Unlock()

	select {
	case action := <-respCh:
		return action, nil
	case <-ctx.Done():
		return ports.ActionSkip, ctx.Err()
	}
}

// escapeMarkdown prevents Telegram markdown parse errors on special
// characters inside AI-generated text.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
