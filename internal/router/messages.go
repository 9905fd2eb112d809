package router

import (
	"fmt"
	"time"
)

// User-visible notices. Kept in one place so the router, not the
// transport, owns the wording.
const (
	noticeSenderBlocked   = "❌ Вы заблокированы и не можете отправлять сообщения."
	noticeSubmissionSent  = "✅ Ваш пост отправлен администраторам анонимно!"
	noticeUserReplySent   = "✅ Ваш ответ отправлен администратору."
	noticeUserReplyFailed = "❌ Не удалось отправить ответ администратору."
	noticeAdminReplyFail  = "❌ Не удалось отправить ответ пользователю."
	noticeAdminNoTarget   = "❌ Ошибка: не найден пользователь для ответа."
	noticeTargetBlocked   = "❌ Этот пользователь заблокирован."

	replyHintUser = "💬 Вы отвечаете администратору.\n\n" +
		"📝 Отправьте ваше сообщение:\n\n" +
		"ℹ️ Чтобы отправить обычное сообщение администраторам, используйте /start"

	welcomeText = "👋 Привет! Я бот для анонимных предложок.\n\n" +
		"📝 Просто отправьте мне сообщение, и оно будет переслано администраторам " +
		"анонимно (ваши данные не будут видны другим пользователям, но будут доступны админам).\n\n" +
		"⚠️ Пожалуйста, соблюдайте правила сообщества."

	welcomeAdminSuffix = "\n\n👑 Вы администратор. Используйте /panel для открытия панели управления."
)

const headerTimeLayout = "02.01.2006 15:04"

// senderHeader renders the full sender metadata block shown to
// administrators above relayed content.
func senderHeader(title string, from Sender) string {
	firstName := from.FirstName
	if firstName == "" {
		firstName = "Не указано"
	}
	lastName := from.LastName
	if lastName == "" {
		lastName = "Не указано"
	}
	username := "Нет"
	if from.Username != "" {
		username = "@" + from.Username
	}

	return fmt.Sprintf(
		"%s\n\n"+
			"👤 Пользователь:\n"+
			"🆔 ID: %d\n"+
			"📛 Имя: %s\n"+
			"📛 Фамилия: %s\n"+
			"🔗 Username: %s\n"+
			"📅 Дата: %s\n\n"+
			"📝 Сообщение:",
		title, from.ID, firstName, lastName, username,
		time.Now().Format(headerTimeLayout),
	)
}

func contentBody(msg Inbound) string {
	if msg.Text != "" {
		return msg.Text
	}
	return "[Медиа-сообщение]"
}

func replyHintAdmin(targetID int64, name string) string {
	return fmt.Sprintf(
		"💬 Вы отвечаете пользователю:\n\n"+
			"🆔 ID: %d\n"+
			"👤 Имя: %s\n\n"+
			"📝 Отправьте сообщение для ответа (текст, фото, видео и т.д.):\n\n"+
			"ℹ️ Чтобы отменить ответ, используйте /close",
		targetID, name,
	)
}

func blockedNotice(reason string) string {
	return fmt.Sprintf("🚫 Вы были заблокированы администратором.\n📝 Причина: %s", reason)
}

const unblockedNotice = "✅ Вы были разблокированы администратором."

func mediaFallbackNotice(header, kind string) string {
	return fmt.Sprintf("%s\n\n⚠️ Не удалось отправить медиа. Тип: %s", header, kind)
}

func adminReplySent(targetID int64) string {
	return fmt.Sprintf("✅ Ответ отправлен пользователю %d", targetID)
}
