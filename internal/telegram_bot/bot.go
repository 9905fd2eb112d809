package telegram_bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"anonbox/internal/apperrors"
	"anonbox/internal/config"
	"anonbox/internal/models"
	"anonbox/internal/router"
)

// Admin menu button labels.
const (
	btnBlock   = "🚫 Заблокировать пользователя"
	btnUnblock = "✅ Разблокировать пользователя"
	btnStats   = "📊 Статистика"
	btnClose   = "✖️ Закрыть меню"
)

// Admin prompt flow: which input the bot is waiting for from an admin.
// This is presentation state, separate from reply mode.
type promptStep int

const (
	promptNone promptStep = iota
	promptBlockID
	promptBlockReason
	promptUnblockID
)

type promptState struct {
	step        promptStep
	blockTarget int64
}

// Bot is the Telegram front end: it receives updates, renders the admin
// menu and prompt flows, and hands messages to the router. It also
// implements router.Transport (see send.go).
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
	router *router.Router

	mu      sync.Mutex
	prompts map[int64]*promptState
}

// NewBot creates a new Telegram bot instance.
func NewBot(cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:     botAPI,
		logger:  logger,
		prompts: make(map[int64]*promptState),
	}, nil
}

// SetRouter wires the router in after construction; the router itself
// needs the bot as its transport.
func (b *Bot) SetRouter(r *router.Router) {
	b.router = r
}

// Start begins listening for updates from Telegram.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(update.CallbackQuery)
			} else if update.Message != nil {
				b.handleMessage(update.Message)
			}
		}
	}
}

// handleMessage processes incoming messages.
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}
	from := senderFrom(message.From)

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStartCommand(from)
		case "panel":
			b.handlePanelCommand(from, message.Chat.ID)
		case "close":
			b.handleCloseCommand(from, message.Chat.ID)
		default:
			b.sendMessage(message.Chat.ID, "Неизвестная команда. Используйте /start для начала работы.")
		}
		return
	}

	if b.router.IsAdmin(from.ID) {
		switch message.Text {
		case btnBlock:
			b.handleBlockButton(from)
			return
		case btnUnblock:
			b.handleUnblockButton(from)
			return
		case btnStats:
			b.handleStatsButton(from)
			return
		case btnClose:
			b.handleCloseCommand(from, message.Chat.ID)
			return
		}

		if state := b.takePrompt(from.ID); state != nil {
			b.handlePromptInput(from, state, message.Text)
			return
		}
	}

	if err := b.router.HandleMessage(from, inboundFrom(message)); err != nil {
		// Expected rejections are already surfaced to the sender by
		// the router; everything else is logged here.
		switch {
		case errors.Is(err, apperrors.ErrBlockedSender),
			errors.Is(err, apperrors.ErrBlockedTarget),
			errors.Is(err, apperrors.ErrUnknownTarget),
			apperrors.IsDeliveryError(err):
		default:
			b.logger.Error("Failed to handle message",
				zap.Int64("user_id", from.ID),
				zap.Error(err),
			)
			b.sendMessage(message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		}
	}
}

func (b *Bot) handleStartCommand(from router.Sender) {
	if err := b.router.Onboard(from); err != nil && !errors.Is(err, apperrors.ErrBlockedSender) {
		b.logger.Error("Failed to onboard user", zap.Int64("user_id", from.ID), zap.Error(err))
	}
}

func (b *Bot) handlePanelCommand(from router.Sender, chatID int64) {
	if !b.router.IsAdmin(from.ID) {
		b.sendMessage(chatID, "⛔ У вас нет прав администратора.")
		return
	}

	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBlock)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnUnblock)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnStats)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnClose)),
	)
	kb.ResizeKeyboard = true
	kb.InputFieldPlaceholder = "Выберите действие..."

	msg := tgbotapi.NewMessage(chatID, "👑 Панель администратора")
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send admin panel", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleCloseCommand(from router.Sender, chatID int64) {
	if !b.router.IsAdmin(from.ID) {
		b.sendMessage(chatID, "⛔ У вас нет прав администратора.")
		return
	}

	b.clearPrompt(from.ID)
	if b.router.CancelReply(from.ID) {
		b.sendMessage(chatID, "✅ Ответ отменен.")
	}

	msg := tgbotapi.NewMessage(chatID, "✅ Меню администратора закрыто")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to close admin menu", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) handleBlockButton(from router.Sender) {
	b.router.CancelReply(from.ID)
	b.setPrompt(from.ID, &promptState{step: promptBlockID})
	b.sendMessage(from.ID, "📝 Отправьте ID пользователя для блокировки:")
}

func (b *Bot) handleUnblockButton(from router.Sender) {
	b.router.CancelReply(from.ID)

	blocked, err := b.router.BlockedList()
	if err != nil {
		b.logger.Error("Failed to list blocked users", zap.Error(err))
		b.sendMessage(from.ID, "❌ Не удалось получить список заблокированных.")
		return
	}
	if len(blocked) == 0 {
		b.sendMessage(from.ID, "✅ Нет заблокированных пользователей.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🚫 Заблокированные пользователи (выберите ID для разблокировки):\n\n")
	for _, rec := range blocked {
		reason := rec.Reason
		if reason == "" {
			reason = "Причина не указана"
		}
		sb.WriteString(fmt.Sprintf("🆔 %d - 👤 %s\n", rec.UserID, models.DisplayName(rec.FirstName, rec.LastName)))
		sb.WriteString(fmt.Sprintf("   📝 Причина: %s\n", reason))
		sb.WriteString(fmt.Sprintf("   🕒 Заблокирован: %s\n\n", rec.BlockedAt.Format("02.01.2006")))
	}
	sb.WriteString("📝 Отправьте ID пользователя для разблокировки:")

	b.setPrompt(from.ID, &promptState{step: promptUnblockID})
	b.sendMessage(from.ID, sb.String())
}

func (b *Bot) handleStatsButton(from router.Sender) {
	b.router.CancelReply(from.ID)

	stats, err := b.router.Stats()
	if err != nil {
		b.logger.Error("Failed to collect statistics", zap.Error(err))
		b.sendMessage(from.ID, "❌ Не удалось собрать статистику.")
		return
	}

	text := fmt.Sprintf(
		"📊 Статистика за сегодня:\n"+
			"┣ 👤 Новые пользователи: %d\n"+
			"┣ 🚫 Заблокированные: %d\n"+
			"┣ ✅ Разблокированные: %d\n"+
			"┗ 📨 Постов отправлено: %d\n\n"+
			"📈 Общая статистика:\n"+
			"┣ 👥 Всего пользователей: %d\n"+
			"┣ 🚫 Всего заблокировано: %d\n"+
			"┗ 📨 Всего постов: %d\n\n"+
			"📅 Дата: %s",
		stats.NewUsersToday, stats.BlockedToday, stats.UnblockedToday, stats.SubmissionsToday,
		stats.TotalUsers, stats.TotalBlocked, stats.TotalSubmissions,
		stats.GeneratedAt.Format("02.01.2006 15:04"),
	)
	b.sendMessage(from.ID, text)
}

// handlePromptInput consumes one admin message while a prompt flow is
// pending. The prompt state has already been removed from the map; it
// is re-armed only where the flow continues.
func (b *Bot) handlePromptInput(from router.Sender, state *promptState, text string) {
	text = strings.TrimSpace(text)

	switch state.step {
	case promptBlockID:
		id, err := parseID(text)
		if err != nil {
			// Malformed input keeps the prompt armed for a retry.
			b.setPrompt(from.ID, state)
			b.sendMessage(from.ID, "⚠️ Неверный формат ID. Отправьте числовой ID пользователя.")
			return
		}
		if b.router.IsAdmin(id) {
			b.sendMessage(from.ID, "❌ Нельзя заблокировать администратора.")
			return
		}
		if blocked, err := b.router.IsBlocked(id); err != nil {
			b.logger.Error("Failed to check block state", zap.Int64("user_id", id), zap.Error(err))
			b.sendMessage(from.ID, "❌ Произошла ошибка. Попробуйте позже.")
			return
		} else if blocked {
			b.sendMessage(from.ID, "⚠️ Этот пользователь уже заблокирован.")
			return
		}
		b.setPrompt(from.ID, &promptState{step: promptBlockReason, blockTarget: id})
		b.sendMessage(from.ID, "📝 Теперь отправьте причину блокировки:")

	case promptBlockReason:
		if text == "" {
			// Keep waiting for a usable reason.
			b.setPrompt(from.ID, state)
			b.sendMessage(from.ID, "⚠️ Причина не может быть пустой. Попробуйте снова.")
			return
		}
		b.finishBlock(from, state.blockTarget, text)

	case promptUnblockID:
		id, err := parseID(text)
		if err != nil {
			b.setPrompt(from.ID, state)
			b.sendMessage(from.ID, "⚠️ Неверный формат ID. Отправьте числовой ID пользователя.")
			return
		}
		b.finishUnblock(from, id)
	}
}

func (b *Bot) finishBlock(from router.Sender, target int64, reason string) {
	rec, known, err := b.router.Block(target, from.ID, reason)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidBlockTarget):
			b.sendMessage(from.ID, "❌ Нельзя заблокировать администратора.")
		case errors.Is(err, apperrors.ErrAlreadyBlocked):
			b.sendMessage(from.ID, "⚠️ Этот пользователь уже заблокирован.")
		default:
			b.logger.Error("Failed to block user", zap.Int64("user_id", target), zap.Error(err))
			b.sendMessage(from.ID, "❌ Не удалось заблокировать пользователя.")
		}
		return
	}

	if known {
		b.sendMessage(from.ID, fmt.Sprintf(
			"✅ Пользователь успешно заблокирован:\n\n"+
				"🆔 ID: %d\n"+
				"👤 Имя: %s\n"+
				"📝 Причина: %s",
			target, models.DisplayName(rec.FirstName, rec.LastName), reason,
		))
		return
	}
	b.sendMessage(from.ID, fmt.Sprintf(
		"✅ Пользователь успешно заблокирован:\n\n"+
			"🆔 ID: %d\n"+
			"📝 Причина: %s\n"+
			"ℹ️ Пользователь не найден в базе данных",
		target, reason,
	))
}

func (b *Bot) finishUnblock(from router.Sender, target int64) {
	rec, err := b.router.Unblock(target, from.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotBlocked) {
			b.sendMessage(from.ID, "❌ Пользователь с таким ID не найден в списке заблокированных.")
			return
		}
		b.logger.Error("Failed to unblock user", zap.Int64("user_id", target), zap.Error(err))
		b.sendMessage(from.ID, "❌ Не удалось разблокировать пользователя.")
		return
	}

	reason := rec.Reason
	if reason == "" {
		reason = "Причина не указана"
	}
	b.sendMessage(from.ID, fmt.Sprintf(
		"✅ Пользователь успешно разблокирован:\n\n"+
			"🆔 ID: %d\n"+
			"👤 Имя: %s\n"+
			"📝 Причина блокировки: %s",
		target, models.DisplayName(rec.FirstName, rec.LastName), reason,
	))
}

// handleCallbackQuery processes the "reply" button attached to relayed
// messages.
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	b.logger.Info("Received callback query",
		zap.String("data", query.Data),
		zap.Int64("user_id", query.From.ID),
	)

	// Parse callback data: "reply:<counterpart_id>"
	parts := strings.SplitN(query.Data, ":", 2)
	if len(parts) != 2 || parts[0] != "reply" {
		b.logger.Error("Failed to parse callback data: invalid format", zap.String("data", query.Data))
		b.answerCallback(query.ID, "❌ Ошибка обработки запроса", true)
		return
	}

	target, err := parseID(parts[1])
	if err != nil {
		b.logger.Error("Failed to parse counterpart ID", zap.String("id", parts[1]), zap.Error(err))
		b.answerCallback(query.ID, "❌ Ошибка обработки запроса", true)
		return
	}

	from := senderFrom(query.From)
	switch err := b.router.BeginReply(from, target); {
	case err == nil:
		if b.router.IsAdmin(from.ID) {
			b.answerCallback(query.ID, fmt.Sprintf("Отвечаете пользователю %d", target), false)
		} else {
			b.answerCallback(query.ID, "Отвечаете администратору", false)
		}
	case errors.Is(err, apperrors.ErrBlockedSender):
		b.answerCallback(query.ID, "❌ Вы заблокированы и не можете отвечать на сообщения.", true)
	case errors.Is(err, apperrors.ErrBlockedTarget):
		b.answerCallback(query.ID, "❌ Этот пользователь заблокирован.", true)
	case errors.Is(err, apperrors.ErrInvalidReplyTarget):
		b.answerCallback(query.ID, "❌ Вы можете отвечать только администраторам.", true)
	default:
		b.logger.Error("Failed to begin reply",
			zap.Int64("user_id", from.ID),
			zap.Int64("target", target),
			zap.Error(err),
		)
		b.answerCallback(query.ID, "❌ Произошла ошибка. Попробуйте позже.", true)
	}
}

func (b *Bot) answerCallback(callbackID, text string, alert bool) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if alert {
		callback = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}
}

func (b *Bot) setPrompt(adminID int64, state *promptState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts[adminID] = state
}

// takePrompt removes and returns the pending prompt state, if any.
func (b *Bot) takePrompt(adminID int64) *promptState {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.prompts[adminID]
	delete(b.prompts, adminID)
	return state
}

func (b *Bot) clearPrompt(adminID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.prompts, adminID)
}

// sendMessage is a helper to send a simple text message.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// parseID parses a principal ID typed by a human or embedded in
// callback data.
func parseID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, apperrors.ErrMalformedInput
	}
	return id, nil
}

func senderFrom(u *tgbotapi.User) router.Sender {
	return router.Sender{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// inboundFrom classifies a Telegram message into the router's content
// model.
func inboundFrom(msg *tgbotapi.Message) router.Inbound {
	in := router.Inbound{
		Kind:      models.MediaOther,
		Text:      msg.Text,
		MessageID: msg.MessageID,
		ChatID:    msg.Chat.ID,
	}

	switch {
	case msg.Text != "":
		in.Kind = models.MediaText
	case len(msg.Photo) > 0:
		in.Kind = models.MediaPhoto
		in.FileID = msg.Photo[len(msg.Photo)-1].FileID
		in.Text = msg.Caption
	case msg.Video != nil:
		in.Kind = models.MediaVideo
		in.FileID = msg.Video.FileID
		in.Text = msg.Caption
	case msg.Document != nil:
		in.Kind = models.MediaDocument
		in.FileID = msg.Document.FileID
		in.Text = msg.Caption
	case msg.Voice != nil:
		in.Kind = models.MediaVoice
		in.FileID = msg.Voice.FileID
		in.Text = msg.Caption
	case msg.Audio != nil:
		in.Kind = models.MediaAudio
		in.FileID = msg.Audio.FileID
		in.Text = msg.Caption
	case msg.Sticker != nil:
		in.Kind = models.MediaSticker
		in.FileID = msg.Sticker.FileID
	default:
		in.Text = msg.Caption
	}

	return in
}
