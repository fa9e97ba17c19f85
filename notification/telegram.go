// Package notification provides implementations for various notification services
package notification

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/chartmark/chartmark/core"
	tb "gopkg.in/tucnak/telebot.v2"
)

const (
	pollingTimeout = 10 * time.Second
	requestTimeout = 10 * time.Second
)

var (
	drawingsRegexp = regexp.MustCompile(`/drawings\s+(?P<symbol>\w+)(?:\s+(?P<interval>\w+))?`)
	clearRegexp    = regexp.MustCompile(`/clear\s+(?P<symbol>\w+)\s+(?P<interval>\w+)`)
)

// Settings holds the Telegram bot configuration
type Settings struct {
	Token    string
	Users    []int
	Interval core.Interval
	Symbols  []string
}

// Telegram implements the core.NotifierWithStart interface. Besides pushing
// notifications it answers a small command set for inspecting and clearing
// stored drawings.
type Telegram struct {
	settings    Settings
	storage     core.DrawingStorage
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
	startedAt   time.Time
	log         core.Logger
}

// Option is a function that configures a telegram instance
type Option func(telegram *Telegram)

// WithDrawingStorage wires the drawing store the bot commands read from
func WithDrawingStorage(storage core.DrawingStorage) Option {
	return func(t *Telegram) {
		t.storage = storage
	}
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(settings Settings, log core.Logger, options ...Option) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: pollingTimeout}
	userMiddleware := newAuthMiddleware(poller, settings, log)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		client:      client,
		settings:    settings,
		defaultMenu: menu,
		log:         log,
	}

	for _, option := range options {
		option(bot)
	}

	registerHandlers(client, bot)

	return bot, nil
}

// newAuthMiddleware creates a middleware to validate authorized users
func newAuthMiddleware(poller *tb.LongPoller, settings Settings, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		statusBtn   = menu.Text("/status")
		drawingsBtn = menu.Text("/drawings")
		helpBtn     = menu.Text("/help")
	)

	menu.Reply(
		menu.Row(statusBtn, drawingsBtn, helpBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/status", Description: "Check server status"},
		{Text: "/drawings", Description: "List stored drawings for a symbol"},
		{Text: "/clear", Description: "Delete all drawings for a symbol and interval"},
	})
}

// registerHandlers registers all command handlers
func registerHandlers(client *tb.Bot, bot *Telegram) {
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/drawings", bot.DrawingsHandle)
	client.Handle("/clear", bot.ClearHandle)
}

// Start begins the Telegram bot and notifies all authorized users
func (t *Telegram) Start() {
	t.startedAt = time.Now()
	go t.client.Start()
	t.sendMessageWithOptions("Chart server initialized.", t.defaultMenu)
}

// Notify sends a message to all authorized users
func (t *Telegram) Notify(text string) {
	for _, user := range t.settings.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, text); err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

// OnError notifies users about errors
func (t *Telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")
	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}

// sendMessageWithOptions sends a message to all authorized users with additional options
func (t *Telegram) sendMessageWithOptions(text string, options ...any) {
	for _, user := range t.settings.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, text, options...); err != nil {
			t.log.WithError(err).Error("failed to send notification with options")
		}
	}
}

// sendMessage sends a message to a specific user
func (t *Telegram) sendMessage(to *tb.User, text string, options ...any) {
	if _, err := t.client.Send(to, text, options...); err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// HelpHandle displays available commands
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// StatusHandle displays the server status
func (t *Telegram) StatusHandle(m *tb.Message) {
	uptime := time.Since(t.startedAt).Round(time.Second)
	t.sendMessage(m.Sender, fmt.Sprintf(
		"Serving `%s` at `%s`\nUptime: `%s`",
		strings.Join(t.settings.Symbols, ", "),
		t.settings.Interval,
		uptime,
	))
}

// DrawingsHandle lists the stored drawings for a symbol
func (t *Telegram) DrawingsHandle(m *tb.Message) {
	if t.storage == nil {
		t.sendMessage(m.Sender, "Drawing storage is not configured.")
		return
	}

	match := drawingsRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExample of usage:\n`/drawings BTCUSDT 1h`")
		return
	}

	command := extractCommandParams(drawingsRegexp, match)
	symbol := strings.ToUpper(command["symbol"])
	interval := t.settings.Interval
	if command["interval"] != "" {
		interval = core.Interval(command["interval"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	drawings, err := t.storage.Drawings(ctx, symbol, interval)
	if err != nil {
		t.OnError(fmt.Errorf("failed to list drawings for %s: %w", symbol, err))
		return
	}

	if len(drawings) == 0 {
		t.sendMessage(m.Sender, fmt.Sprintf("No drawings stored for `%s` at `%s`.", symbol, interval))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*DRAWINGS* `%s` `%s`\n", symbol, interval)
	for _, a := range drawings {
		fmt.Fprintf(&sb, "`%s` %s  %.2f → %.2f\n",
			a.ID[:8], a.Kind, a.Points[0].Price, a.Points[1].Price)
	}

	t.sendMessage(m.Sender, sb.String())
}

// ClearHandle deletes every drawing in a (symbol, interval) scope
func (t *Telegram) ClearHandle(m *tb.Message) {
	if t.storage == nil {
		t.sendMessage(m.Sender, "Drawing storage is not configured.")
		return
	}

	match := clearRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExample of usage:\n`/clear BTCUSDT 1h`")
		return
	}

	command := extractCommandParams(clearRegexp, match)
	symbol := strings.ToUpper(command["symbol"])
	interval := core.Interval(command["interval"])

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	deleted, err := t.storage.DeleteAllDrawings(ctx, symbol, interval)
	if err != nil {
		t.OnError(fmt.Errorf("failed to clear drawings for %s: %w", symbol, err))
		return
	}

	t.sendMessage(m.Sender, fmt.Sprintf("Deleted `%d` drawings for `%s` at `%s`.", deleted, symbol, interval))
}

// Helper function to extract named groups from regex matches
func extractCommandParams(regex *regexp.Regexp, match []string) map[string]string {
	command := make(map[string]string)
	for i, name := range regex.SubexpNames() {
		if i != 0 && name != "" {
			command[name] = match[i]
		}
	}
	return command
}
