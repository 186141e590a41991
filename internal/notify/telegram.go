// Package notify posts short organizer announcements to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/models"
	"chaszcze-site/internal/util"
)

// Notifier is what the rest of the site announces through.
type Notifier interface {
	ResultsSaved(ctx context.Context, event models.Event, grid models.ResultsGrid)
	EventChanged(ctx context.Context, action string, event models.Event)
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot     sender
	chatID  int64
	siteURL string
	log     logrus.FieldLogger
}

func NewTelegram(token string, chatID int64, siteURL string, log logrus.FieldLogger) (*Telegram, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return newTelegram(b, chatID, siteURL, log), nil
}

func newTelegram(bot sender, chatID int64, siteURL string, log logrus.FieldLogger) *Telegram {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Telegram{bot: bot, chatID: chatID, siteURL: strings.TrimRight(siteURL, "/"), log: log}
}

func (t *Telegram) SendText(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) ResultsSaved(_ context.Context, event models.Event, grid models.ResultsGrid) {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 Wyniki opublikowane: %s (%s)\n", event.Name, util.FormatDatePL(event.Date))
	for _, cat := range grid.Categories(event.Categories) {
		rows := grid[cat]
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s: %d drużyn, zwycięzca %s\n", cat, len(rows), rows[0].Team)
	}
	if t.siteURL != "" {
		fmt.Fprintf(&b, "CSV: %s/wyniki/%d.csv", t.siteURL, event.ID)
	}
	t.send(strings.TrimRight(b.String(), "\n"), logrus.Fields{"event_id": event.ID})
}

func (t *Telegram) EventChanged(_ context.Context, action string, event models.Event) {
	var verb string
	switch action {
	case ActionCreated:
		verb = "📅 Nowe wydarzenie"
	case ActionDeleted:
		verb = "🗑 Usunięto wydarzenie"
	default:
		verb = "✏️ Zmieniono wydarzenie"
	}
	text := fmt.Sprintf("%s: %s, %s %s, %s", verb, event.Name,
		util.FormatDatePL(event.Date), event.StartTime, event.Location)
	t.send(text, logrus.Fields{"event_id": event.ID, "action": action})
}

func (t *Telegram) send(text string, fields logrus.Fields) {
	if err := t.SendText(text); err != nil {
		t.log.WithFields(fields).WithError(err).Warn("telegram announcement failed")
	}
}

// Noop drops every announcement.
type Noop struct{}

func (Noop) ResultsSaved(context.Context, models.Event, models.ResultsGrid) {}
func (Noop) EventChanged(context.Context, string, models.Event) {}
