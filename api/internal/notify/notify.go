package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"sipnread/api/internal/models"
	"sipnread/api/internal/util"
)

// questionPreview caps the question echoed into the desk chat.
const questionPreview = 300

// Notifier tells the tassologist desk about workflow events.
type Notifier interface {
	RequestSubmitted(ctx context.Context, pr *models.PersonalizationRequest) error
	InterpretationCompleted(ctx context.Context, pr *models.PersonalizationRequest) error
}

type Noop struct{}

func (Noop) RequestSubmitted(context.Context, *models.PersonalizationRequest) error       { return nil }
func (Noop) InterpretationCompleted(context.Context, *models.PersonalizationRequest) error { return nil }

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot    Sender
	chatID int64
	log    *zap.Logger
}

func NewTelegram(bot Sender, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chatID: chatID, log: log}
}

// New returns a Telegram notifier, or Noop when token or chat are unset.
func New(token string, chatID int64, log *zap.Logger) (Notifier, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		return Noop{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram: %w", err)
	}
	return NewTelegram(bot, chatID, log), nil
}

func (t *Telegram) RequestSubmitted(ctx context.Context, pr *models.PersonalizationRequest) error {
	return t.send(ctx, SubmittedText(pr))
}

func (t *Telegram) InterpretationCompleted(ctx context.Context, pr *models.PersonalizationRequest) error {
	return t.send(ctx, CompletedText(pr))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn("telegram send failed", zap.Error(err))
		return err
	}
	return nil
}

func SubmittedText(pr *models.PersonalizationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New personalized reading request %s\n", pr.ID)
	fmt.Fprintf(&b, "Reading: %s\n", pr.ReadingID)
	fmt.Fprintf(&b, "Price: %s\n", FormatPrice(pr.PriceCents, pr.Currency))
	if q := strings.TrimSpace(pr.UserQuestion); q != "" {
		fmt.Fprintf(&b, "Question: %s\n", util.Truncate(q, questionPreview))
	}
	return strings.TrimRight(b.String(), "\n")
}

func CompletedText(pr *models.PersonalizationRequest) string {
	who := pr.TassologistID
	if who == "" {
		who = "unknown"
	}
	return fmt.Sprintf("Request %s completed by %s", pr.ID, who)
}

// FormatPrice renders cents as a decimal amount, e.g. 1500 USD → "15.00 USD".
func FormatPrice(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	s := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	if currency != "" {
		s += " " + strings.ToUpper(currency)
	}
	return s
}
