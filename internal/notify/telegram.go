// Package notify sends scan summaries to Telegram.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/region"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// DefaultMaxListed caps how many new or removed titles one message lists.
const DefaultMaxListed = 15

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot       sender
	chatID    int64
	regions   region.Regions
	maxListed int
	log       *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, regions region.Regions, log *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	//turn this on in case of debug
	//bot.Debug = true

	return newNotifier(bot, chatID, regions, log), nil
}

func newNotifier(bot sender, chatID int64, regions region.Regions, log *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		regions:   regions,
		maxListed: DefaultMaxListed,
		log:       log,
	}
}

func (t *TelegramNotifier) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// Report sends the summary for one result.
func (t *TelegramNotifier) Report(ctx context.Context, res diff.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.SendMessage(Summary(res, t.regions, t.maxListed)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug("📨 summary sent", zap.String("key", res.Key().String()))
	return nil
}

func (t *TelegramNotifier) SendError(err error) error {
	return t.SendMessage(fmt.Sprintf("⚠️ <b>Tracker error</b>:\n%s", html.EscapeString(err.Error())))
}

// Summary renders one result as a Telegram HTML message.
func Summary(res diff.Result, regions region.Regions, maxListed int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 <b>%s</b> / %s\n", html.EscapeString(res.Portal), html.EscapeString(res.Category))

	if res.ColdStart {
		b.WriteString("🆕 First run: every listing is reported as new\n")
	}
	if res.Degraded {
		fmt.Fprintf(&b, "⚠️ Degraded: completeness threshold not met after %d attempts\n", res.Attempts)
	}
	if !res.Recorded {
		if res.CommitError != "" {
			fmt.Fprintf(&b, "❗ Not recorded: %s\n", html.EscapeString(res.CommitError))
		} else {
			b.WriteString("❗ Not recorded: snapshot left unchanged, the next run diffs against the previous one\n")
		}
	}

	removed := fmt.Sprint(len(res.Removed))
	if !res.Policy.TracksRemovals() {
		removed = "not tracked"
	}
	fmt.Fprintf(&b, "Current: %d | New: %d | Removed: %s\n", len(res.Current), len(res.New), removed)

	for _, name := range regions.Names() {
		cur := regions.Count(name, res.Current)
		if cur == 0 {
			continue
		}
		fmt.Fprintf(&b, "🌏 %s: %d current, %d new\n", html.EscapeString(name), cur, regions.Count(name, res.New))
	}

	writeList(&b, "🔥 New", res.New, regions, maxListed)
	writeList(&b, "🗑 Removed", res.Removed, regions, maxListed)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, heading string, jobs []models.Job, regions region.Regions, max int) {
	if len(jobs) == 0 {
		return
	}
	if max <= 0 {
		max = DefaultMaxListed
	}
	fmt.Fprintf(b, "\n<b>%s</b>\n", heading)
	for i, j := range jobs {
		if i == max {
			fmt.Fprintf(b, "… and %d more\n", len(jobs)-max)
			break
		}
		b.WriteString("• " + line(j, regions) + "\n")
	}
}

func line(j models.Job, regions region.Regions) string {
	title := j.Title
	if title == "" {
		title = "(untitled " + j.ID + ")"
	}
	title = html.EscapeString(title)
	if j.URL != "" {
		title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(j.URL), title)
	}

	loc := j.Location
	if loc == "" {
		loc = "N/A"
	}
	s := title + " · 📍 " + html.EscapeString(loc)
	if tags := regions.Of(j.Location); len(tags) > 0 {
		s += " [" + html.EscapeString(strings.Join(tags, ", ")) + "]"
	}
	return s
}
