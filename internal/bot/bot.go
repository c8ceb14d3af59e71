package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-ledger/internal/config"
	"task-ledger/internal/interaction"
	"task-ledger/internal/model"
	"task-ledger/internal/repository"
	"task-ledger/internal/service"
)

// Deps are the services the command layer drives.
type Deps struct {
	Tasks   *service.TaskService
	Confirm *service.ConfirmWorkflow
	Status  *service.StatusWorkflow
	Summary *service.SummaryService
	Members *repository.MemberRepository
	Waiter  *interaction.Waiter
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api      *tgbotapi.BotAPI
	telegram *Telegram
	deps     Deps
	config   *config.Config
	version  string
	log      *slog.Logger

	wg sync.WaitGroup
}

func New(api *tgbotapi.BotAPI, telegram *Telegram, deps Deps, cfg *config.Config, version string, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		telegram: telegram,
		deps:     deps,
		config:   cfg,
		version:  version,
		log:      log,
	}
}

// Start begins polling updates until ctx is cancelled. Each command runs in
// its own goroutine so a waiting workflow never blocks the button press that
// resolves it. Start returns after every in-flight command has finished.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			b.handleCallback(update.CallbackQuery)
		case update.Message != nil && update.Message.IsCommand():
			msg := update.Message
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				if err := b.handleCommand(ctx, msg); err != nil {
					b.log.Error("handle command", "command", msg.Command(), "chat_id", msg.Chat.ID, "error", err)
				}
			}()
		}
	}

	b.wg.Wait()
	return nil
}

// handleCallback routes a button press to the waiting prompt.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb == nil || cb.From == nil {
		return
	}
	promptID, value, ok := interaction.DecodeChoice(cb.Data)
	notice := ""
	if !ok {
		notice = "This button is no longer active."
	} else {
		switch b.deps.Waiter.Dispatch(promptID, cb.From.ID, value) {
		case interaction.Accepted:
			b.log.Debug("prompt answered", "prompt_id", promptID, "user_id", cb.From.ID)
		case interaction.Forbidden:
			notice = "Only the person who ran the command can answer."
		case interaction.Expired:
			notice = "This prompt has expired."
		}
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, notice)); err != nil {
		b.log.Warn("callback ack", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	if !b.config.ChatAllowed(msg.Chat.ID) {
		b.log.Warn("chat not allowed", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)
		return b.reply(msg, "⚠️ This bot is not enabled for this chat.")
	}
	if err := b.deps.Members.Remember(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName); err != nil {
		b.log.Warn("remember member", "user_id", msg.From.ID, "error", err)
	}

	b.log.Info("command", "command", msg.Command(), "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	switch msg.Command() {
	case "add":
		return b.handleAdd(ctx, msg)
	case "show":
		return b.handleShow(ctx, msg)
	case "showall":
		return b.handleShowAll(ctx, msg)
	case "remove":
		return b.handleRemove(ctx, msg)
	case "status":
		return b.handleStatus(ctx, msg)
	case "help", "start":
		return b.reply(msg, helpText)
	case "version":
		return b.reply(msg, fmt.Sprintf("task-ledger %s", escape(b.version)))
	default:
		return b.reply(msg, "Unknown command. See /help.")
	}
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	input, err := parseAddArgs(msg.CommandArguments())
	if err != nil {
		return b.reply(msg, escape(err.Error())+"\nUsage: /add name | description | member | deadline")
	}

	var notes []string
	member, ok := resolveMemberArg(input.Member, msg)
	if !ok {
		notes = append(notes, "member not understood, task left unassigned")
	}
	input.Member = member

	task, err := b.deps.Tasks.AddTask(ctx, msg.Chat.ID, input)
	if err != nil {
		if errors.Is(err, service.ErrTaskNameRequired) {
			return b.reply(msg, "Task name is required.")
		}
		_ = b.reply(msg, "❌ Could not save the task.")
		return err
	}
	if strings.TrimSpace(input.Deadline) != "" && task.Deadline == nil {
		notes = append(notes, fmt.Sprintf("deadline not understood (use %s), saved without deadline", model.DateLayout))
	}

	b.log.Info("task created", "chat_id", msg.Chat.ID, "task_id", task.ID)
	text := formatCreated(*task)
	for _, n := range notes {
		text += "\nℹ️ " + escape(n)
	}
	return b.reply(msg, text)
}

func (b *Bot) handleShow(ctx context.Context, msg *tgbotapi.Message) error {
	member, private, err := parseListArgs(msg.CommandArguments(), msg.From.ID)
	if err != nil {
		return b.reply(msg, escape(err.Error()))
	}
	tasks, err := b.deps.Tasks.ListTasks(ctx, msg.Chat.ID, member)
	if err != nil {
		_ = b.reply(msg, "❌ Could not load tasks.")
		return err
	}
	if len(tasks) == 0 {
		return b.deliver(msg, []string{"No tasks ☕"}, private)
	}

	names := make(map[string]string)
	now := time.Now()
	blocks := make([]string, 0, len(tasks))
	for _, task := range tasks {
		name := model.Unassigned
		if task.Member != nil {
			var ok bool
			if name, ok = names[*task.Member]; !ok {
				name = b.telegram.DisplayName(ctx, msg.Chat.ID, *task.Member)
				names[*task.Member] = name
			}
		}
		blocks = append(blocks, formatTask(task, name, now))
	}
	if err := b.deliver(msg, splitMessages(blocks, maxMessageRunes), private); err != nil {
		_ = b.reply(msg, "❌ Could not send the task list.")
		return err
	}
	return nil
}

func (b *Bot) handleShowAll(ctx context.Context, msg *tgbotapi.Message) error {
	member, private, err := parseListArgs(msg.CommandArguments(), msg.From.ID)
	if err != nil {
		return b.reply(msg, escape(err.Error()))
	}
	text, err := b.deps.Summary.Summary(ctx, member, time.Now())
	if err != nil {
		_ = b.reply(msg, "❌ Could not count tasks.")
		return err
	}
	if err := b.deliver(msg, splitLines(text, maxMessageRunes), private); err != nil {
		_ = b.reply(msg, "❌ Could not send the summary.")
		return err
	}
	return nil
}

func (b *Bot) handleRemove(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := taskIDArg(msg.CommandArguments())
	if !ok {
		return b.reply(msg, "Give the task id: /remove &lt;id&gt;")
	}
	report, err := b.deps.Confirm.Run(ctx, service.Target{ChannelID: msg.Chat.ID, UserID: msg.From.ID, TaskID: taskID})
	if err != nil {
		_ = b.reply(msg, "❌ Could not delete the task.")
		return err
	}
	return b.reply(msg, formatDeleteReport(report, taskID))
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := taskIDArg(msg.CommandArguments())
	if !ok {
		return b.reply(msg, "Give the task id: /status &lt;id&gt;")
	}
	report, err := b.deps.Status.Run(ctx, service.Target{ChannelID: msg.Chat.ID, UserID: msg.From.ID, TaskID: taskID})
	if err != nil {
		_ = b.reply(msg, "❌ Could not change the status.")
		return err
	}
	return b.reply(msg, formatStatusReport(report, taskID))
}

// SendSummary posts the task overview to chatID.
func (b *Bot) SendSummary(ctx context.Context, chatID int64) error {
	text, err := b.deps.Summary.Summary(ctx, nil, time.Now())
	if err != nil {
		return err
	}
	_, err = b.sendAll(chatID, 0, splitLines(text, maxMessageRunes))
	return err
}

// reply answers the invoking message directly.
func (b *Bot) reply(to *tgbotapi.Message, text string) error {
	return b.send(to.Chat.ID, to.MessageID, text)
}

func (b *Bot) send(chatID int64, replyTo int, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = replyTo
	_, err := b.api.Send(msg)
	return err
}

// sendAll posts chunks in order and reports how many went out.
func (b *Bot) sendAll(chatID int64, replyTo int, chunks []string) (int, error) {
	for i, chunk := range chunks {
		if err := b.send(chatID, replyTo, chunk); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// deliver sends a listing as threaded replies, or as direct messages to the
// invoking user when private is set. Telegram refuses a direct message to a
// user who never started the bot; whatever was not delivered then falls back
// to the chat.
func (b *Bot) deliver(msg *tgbotapi.Message, chunks []string, private bool) error {
	if private && !msg.Chat.IsPrivate() {
		sent, err := b.sendAll(msg.From.ID, 0, chunks)
		if err == nil {
			return b.reply(msg, "📬 Sent to you in a direct message.")
		}
		b.log.Warn("direct message", "user_id", msg.From.ID, "sent", sent, "error", err)
		note := "⚠️ Could not message you directly, start a chat with the bot first."
		chunks = append([]string{note}, chunks[sent:]...)
	}
	_, err := b.sendAll(msg.Chat.ID, msg.MessageID, chunks)
	return err
}

// parseAddArgs splits "name | description | member | deadline". Only the
// name is required.
func parseAddArgs(args string) (service.TaskInput, error) {
	parts := strings.Split(args, "|")
	if len(parts) > 4 {
		return service.TaskInput{}, fmt.Errorf("too many fields")
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return service.TaskInput{}, fmt.Errorf("task name is required")
	}
	return service.TaskInput{
		Name:        parts[0],
		Description: parts[1],
		Member:      parts[2],
		Deadline:    parts[3],
	}, nil
}

// resolveMemberArg turns the member field into a user id. An empty field
// takes the author of the replied-to message, if any. ok is false when the
// field was given but not understood.
func resolveMemberArg(raw string, msg *tgbotapi.Message) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && !msg.ReplyToMessage.From.IsBot {
			return strconv.FormatInt(msg.ReplyToMessage.From.ID, 10), true
		}
		return "", true
	case strings.EqualFold(raw, "me"):
		return strconv.FormatInt(msg.From.ID, 10), true
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

// parseListArgs reads the arguments of /show and /showall: an optional
// member filter and an optional "private" flag, in any order.
func parseListArgs(args string, self int64) (member *string, private bool, err error) {
	for _, field := range strings.Fields(args) {
		if strings.EqualFold(field, "private") {
			private = true
			continue
		}
		if member != nil {
			return nil, false, fmt.Errorf("only one member filter is allowed")
		}
		if member, err = memberFilter(field, self); err != nil {
			return nil, false, err
		}
	}
	return member, private, nil
}

// memberFilter parses a "me" or user id filter.
func memberFilter(args string, self int64) (*string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil, nil
	}
	if strings.EqualFold(args, "me") {
		s := strconv.FormatInt(self, 10)
		return &s, nil
	}
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("member must be \"me\" or a numeric user id")
	}
	s := strconv.FormatInt(id, 10)
	return &s, nil
}

func taskIDArg(args string) (string, bool) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "", false
	}
	return fields[0], true
}
