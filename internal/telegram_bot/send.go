package telegram_bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"anonbox/internal/models"
	"anonbox/internal/router"
)

// replyKeyboard builds the inline "reply" affordance carrying the
// counterpart ID.
func replyKeyboard(counterpart int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Ответить", fmt.Sprintf("reply:%d", counterpart)),
		),
	)
}

// Deliver implements router.Transport: one physical send per call. Any
// API error is returned to the router, which decides what the sender
// sees.
func (b *Bot) Deliver(to int64, d router.Delivery) error {
	var c tgbotapi.Chattable

	switch d.Kind {
	case models.MediaPhoto:
		msg := tgbotapi.NewPhoto(to, tgbotapi.FileID(d.FileID))
		msg.Caption = d.Text
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	case models.MediaVideo:
		msg := tgbotapi.NewVideo(to, tgbotapi.FileID(d.FileID))
		msg.Caption = d.Text
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	case models.MediaDocument:
		msg := tgbotapi.NewDocument(to, tgbotapi.FileID(d.FileID))
		msg.Caption = d.Text
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	case models.MediaAudio:
		msg := tgbotapi.NewAudio(to, tgbotapi.FileID(d.FileID))
		msg.Caption = d.Text
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	case models.MediaVoice:
		msg := tgbotapi.NewVoice(to, tgbotapi.FileID(d.FileID))
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	case models.MediaSticker:
		msg := tgbotapi.NewSticker(to, tgbotapi.FileID(d.FileID))
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	default:
		msg := tgbotapi.NewMessage(to, d.Text)
		if d.ReplyTo != 0 {
			msg.ReplyMarkup = replyKeyboard(d.ReplyTo)
		}
		c = msg
	}

	if _, err := b.api.Send(c); err != nil {
		return err
	}
	return nil
}
