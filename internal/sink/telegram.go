package sink

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ironsheep/screenwatch/internal/change"
)

// telegramMaxLen keeps messages under Telegram's 4096-character limit.
const telegramMaxLen = 4000

// Sender is the part of *tgbotapi.BotAPI used by Telegram.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends change notifications to a chat. It implements Notifier.
type Telegram struct {
	bot    Sender
	chatID int64
}

// NewTelegram wraps an existing sender.
func NewTelegram(bot Sender, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID}
}

// DialTelegram authenticates with the Bot API using token.
func DialTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("sink: telegram: %w", err)
	}
	return NewTelegram(bot, chatID), nil
}

func (t *Telegram) Notify(ctx context.Context, ev change.Event) error {
	for _, chunk := range splitMessage(telegramMessage(ev), telegramMaxLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("sink: telegram send: %w", err)
		}
	}
	return nil
}

func telegramMessage(ev change.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (%.0f%%)\n", ev.RegionID, ev.Type, ev.Confidence*100)
	if ev.Text != "" {
		b.WriteString(ev.Text)
	} else {
		b.WriteString(ev.Summary)
	}
	return b.String()
}

// splitMessage cuts s into pieces of at most max bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitMessage(s string, max int) []string {
	var chunks []string
	for len(s) > max {
		cut := strings.LastIndexByte(s[:max], '\n')
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		chunks = append(chunks, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
