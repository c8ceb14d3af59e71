package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-ledger/internal/interaction"
	"task-ledger/internal/model"
	"task-ledger/internal/repository"
)

// UnknownUser is shown when a member id cannot be resolved to a name.
const UnknownUser = "unknown user"

// NewAPI connects to the Bot API with the given token.
func NewAPI(token string, log *slog.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("bot authorized", "account", api.Self.UserName)
	return api, nil
}

// Telegram is the chat-platform collaborator: it publishes and retracts
// prompts and resolves chat and user names.
type Telegram struct {
	api     *tgbotapi.BotAPI
	members *repository.MemberRepository
	log     *slog.Logger
}

func NewTelegram(api *tgbotapi.BotAPI, members *repository.MemberRepository, log *slog.Logger) *Telegram {
	return &Telegram{api: api, members: members, log: log}
}

// SendPrompt posts text with one inline button per option.
func (t *Telegram) SendPrompt(ctx context.Context, chatID int64, text string, promptID string, style interaction.Style, options []interaction.Option) (interaction.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return interaction.MessageRef{}, err
	}
	keyboard, err := promptKeyboard(promptID, style, options)
	if err != nil {
		return interaction.MessageRef{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	sent, err := t.api.Send(msg)
	if err != nil {
		return interaction.MessageRef{}, err
	}
	return interaction.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, ref interaction.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}

// ChannelTitle returns the group title, or the user's name for private chats.
func (t *Telegram) ChannelTitle(ctx context.Context, channelID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: channelID}})
	if err != nil {
		return "", err
	}
	if chat.Title != "" {
		return chat.Title, nil
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" && chat.UserName != "" {
		name = "@" + chat.UserName
	}
	return name, nil
}

// DisplayName resolves a stored member id. It never fails: lookups fall back
// to the member directory and then to UnknownUser.
func (t *Telegram) DisplayName(ctx context.Context, chatID int64, member string) string {
	userID, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return UnknownUser
	}

	cm, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err == nil && cm.User != nil {
		if name := userName(cm.User); name != "" {
			return name
		}
	}

	if t.members != nil {
		if m, err := t.members.FindByTelegramID(ctx, userID); err == nil {
			if name := m.DisplayName(); name != "" {
				return name
			}
		}
	}
	t.log.Debug("display name unresolved", "member", member)
	return UnknownUser
}

func userName(u *tgbotapi.User) string {
	return model.Member{FirstName: u.FirstName, LastName: u.LastName, Username: u.UserName}.DisplayName()
}

func promptKeyboard(promptID string, style interaction.Style, options []interaction.Option) (tgbotapi.InlineKeyboardMarkup, error) {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, opt := range options {
		data, err := interaction.EncodeChoice(promptID, opt.Value)
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(opt.Label, data))
	}
	if style == interaction.StyleMenu {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(b))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
	}
	return tgbotapi.NewInlineKeyboardMarkup(buttons), nil
}
