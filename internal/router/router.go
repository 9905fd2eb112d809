// Package router implements the message-disposition state machine: for
// every inbound message it decides whether the message is a fresh
// anonymous submission, a reply continuing an open thread, or a
// disallowed message from a blocked sender, and emits the resulting
// delivery intents to the transport.
package router

import (
	"fmt"

	"go.uber.org/zap"

	"anonbox/internal/apperrors"
	"anonbox/internal/models"
	"anonbox/internal/replymode"
	"anonbox/internal/repository"
)

// Router orchestrates the stores, the reply-mode tracker and the
// transport.
type Router struct {
	users     repository.UserRepository
	blocks    repository.BlockRepository
	subs      repository.SubmissionRepository
	replies   *replymode.Tracker
	transport Transport
	logger    *zap.Logger

	adminIDs []int64
	admins   map[int64]bool
}

// NewRouter creates a new router over the given stores. adminIDs is the
// static administrator set; membership in it is the sole source of the
// operator role.
func NewRouter(
	users repository.UserRepository,
	blocks repository.BlockRepository,
	subs repository.SubmissionRepository,
	replies *replymode.Tracker,
	transport Transport,
	adminIDs []int64,
	logger *zap.Logger,
) *Router {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Router{
		users:     users,
		blocks:    blocks,
		subs:      subs,
		replies:   replies,
		transport: transport,
		logger:    logger,
		adminIDs:  adminIDs,
		admins:    admins,
	}
}

// IsAdmin reports whether id belongs to the administrator set.
func (r *Router) IsAdmin(id int64) bool {
	return r.admins[id]
}

// IsBlocked reports whether id currently has a block record.
func (r *Router) IsBlocked(id int64) (bool, error) {
	return r.blocks.IsBlocked(id)
}

// Onboard handles first contact (/start): the profile is recorded even
// for blocked users, who then only get the rejection notice.
func (r *Router) Onboard(from Sender) error {
	if _, err := r.users.Upsert(from.ID, from.Username, from.FirstName, from.LastName); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	blocked, err := r.blocks.IsBlocked(from.ID)
	if err != nil {
		return fmt.Errorf("check block state: %w", err)
	}
	if blocked {
		r.notify(from.ID, noticeSenderBlocked)
		return apperrors.ErrBlockedSender
	}

	text := welcomeText
	if r.IsAdmin(from.ID) {
		text += welcomeAdminSuffix
	}
	r.notify(from.ID, text)
	return nil
}

// HandleMessage runs the disposition procedure for one inbound message.
func (r *Router) HandleMessage(from Sender, msg Inbound) error {
	if r.IsAdmin(from.ID) {
		return r.handleAdminMessage(from, msg)
	}
	return r.handleUserMessage(from, msg)
}

func (r *Router) handleUserMessage(from Sender, msg Inbound) error {
	blocked, err := r.blocks.IsBlocked(from.ID)
	if err != nil {
		return fmt.Errorf("check block state: %w", err)
	}
	if blocked {
		r.notify(from.ID, noticeSenderBlocked)
		return apperrors.ErrBlockedSender
	}

	if _, err := r.users.Upsert(from.ID, from.Username, from.FirstName, from.LastName); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	if target, ok := r.replies.Target(from.ID); ok {
		return r.relayUserReply(from, msg, target)
	}
	return r.relaySubmission(from, msg)
}

func (r *Router) handleAdminMessage(from Sender, msg Inbound) error {
	if _, err := r.users.Upsert(from.ID, from.Username, from.FirstName, from.LastName); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	target, ok := r.replies.Target(from.ID)
	if !ok {
		// No target means there is nobody to deliver to.
		r.notify(from.ID, noticeAdminNoTarget)
		return apperrors.ErrUnknownTarget
	}

	blocked, err := r.blocks.IsBlocked(target)
	if err != nil {
		return fmt.Errorf("check block state: %w", err)
	}
	if blocked {
		r.replies.Clear(from.ID)
		r.notify(from.ID, noticeTargetBlocked)
		return apperrors.ErrBlockedTarget
	}

	fullText := "💬 Ответ от администратора\n\n" + contentBody(msg)
	if err := r.deliverContent(target, fullText, msg, from.ID); err != nil {
		// Target retained so the admin can resend without re-tapping
		// the reply button; /close is the way out.
		r.logger.Error("Failed to deliver admin reply",
			zap.Int64("admin_id", from.ID),
			zap.Int64("user_id", target),
			zap.Error(err),
		)
		r.notify(from.ID, noticeAdminReplyFail)
		return &apperrors.DeliveryError{To: target, Err: err}
	}

	r.replies.Clear(from.ID)
	r.notify(from.ID, adminReplySent(target))
	return nil
}

// relayUserReply delivers a user's directed reply to one administrator
// with full sender metadata attached.
func (r *Router) relayUserReply(from Sender, msg Inbound, adminID int64) error {
	fullText := senderHeader("💬 Ответ от пользователя", from) + "\n\n" + contentBody(msg)
	if err := r.deliverContent(adminID, fullText, msg, from.ID); err != nil {
		// State stays set so the user is not silently desynced.
		r.logger.Error("Failed to deliver user reply",
			zap.Int64("user_id", from.ID),
			zap.Int64("admin_id", adminID),
			zap.Error(err),
		)
		r.notify(from.ID, noticeUserReplyFailed)
		return &apperrors.DeliveryError{To: adminID, Err: err}
	}

	r.replies.Clear(from.ID)
	r.notify(from.ID, noticeUserReplySent)
	return nil
}

// relaySubmission records a fresh anonymous submission and fans it out
// to every administrator independently.
func (r *Router) relaySubmission(from Sender, msg Inbound) error {
	header := senderHeader("💬 Сообщение от пользователя", from)
	fullText := header + "\n\n" + contentBody(msg)

	rec := &models.Submission{
		UserID:    from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Content:   msg.Text,
		MediaType: msg.Kind,
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
	}
	if err := r.subs.Append(rec); err != nil {
		return fmt.Errorf("append submission: %w", err)
	}

	for _, adminID := range r.adminIDs {
		if err := r.deliverContent(adminID, fullText, msg, from.ID); err != nil {
			r.logger.Error("Failed to deliver submission to admin",
				zap.Int64("admin_id", adminID),
				zap.Int64("user_id", from.ID),
				zap.Error(err),
			)
			// Single best-effort plain-text fallback.
			fallback := Delivery{
				Kind:    models.MediaText,
				Text:    mediaFallbackNotice(header, msg.Kind),
				ReplyTo: from.ID,
			}
			if err := r.transport.Deliver(adminID, fallback); err != nil {
				r.logger.Error("Fallback notice to admin failed",
					zap.Int64("admin_id", adminID),
					zap.Error(err),
				)
			}
		}
	}

	// The record is durable; individual admin delivery outcomes do not
	// gate the acknowledgment.
	r.notify(from.ID, noticeSubmissionSent)
	return nil
}

// deliverContent issues the physical sends for one logical message.
// Voice and sticker content cannot carry a caption, so the metadata
// text goes first (bearing the reply affordance) and the media follows
// as a supplementary send whose failure does not roll anything back.
func (r *Router) deliverContent(to int64, fullText string, msg Inbound, replyTo int64) error {
	switch msg.Kind {
	case models.MediaVoice, models.MediaSticker:
		if err := r.transport.Deliver(to, Delivery{Kind: models.MediaText, Text: fullText, ReplyTo: replyTo}); err != nil {
			return err
		}
		if err := r.transport.Deliver(to, Delivery{Kind: msg.Kind, FileID: msg.FileID}); err != nil {
			r.logger.Error("Supplementary media send failed",
				zap.Int64("to", to),
				zap.String("kind", msg.Kind),
				zap.Error(err),
			)
		}
		return nil
	case models.MediaPhoto, models.MediaVideo, models.MediaDocument, models.MediaAudio:
		return r.transport.Deliver(to, Delivery{Kind: msg.Kind, Text: fullText, FileID: msg.FileID, ReplyTo: replyTo})
	default:
		return r.transport.Deliver(to, Delivery{Kind: models.MediaText, Text: fullText, ReplyTo: replyTo})
	}
}

// BeginReply handles activation of the reply affordance: it puts the
// principal into reply mode targeting the counterpart and sends the
// composition hint. Users may only target administrators.
func (r *Router) BeginReply(from Sender, target int64) error {
	blocked, err := r.blocks.IsBlocked(from.ID)
	if err != nil {
		return fmt.Errorf("check block state: %w", err)
	}
	if blocked {
		return apperrors.ErrBlockedSender
	}

	targetBlocked, err := r.blocks.IsBlocked(target)
	if err != nil {
		return fmt.Errorf("check block state: %w", err)
	}
	if targetBlocked {
		return apperrors.ErrBlockedTarget
	}

	if !r.IsAdmin(from.ID) {
		if !r.IsAdmin(target) {
			return apperrors.ErrInvalidReplyTarget
		}
		r.replies.SetAwaiting(from.ID, target)
		r.notify(from.ID, replyHintUser)
		return nil
	}

	r.replies.SetAwaiting(from.ID, target)
	r.notify(from.ID, replyHintAdmin(target, r.lookupName(target)))
	return nil
}

// CancelReply returns the principal to idle and reports whether a reply
// was actually pending.
func (r *Router) CancelReply(principal int64) bool {
	_, ok := r.replies.Target(principal)
	if ok {
		r.replies.Clear(principal)
	}
	return ok
}

// lookupName resolves a display name for target, falling back to the
// submission log when the directory has no entry. Unknown targets
// degrade to the placeholder instead of failing.
func (r *Router) lookupName(target int64) string {
	profile, err := r.users.GetByID(target)
	if err == nil && profile != nil {
		return models.DisplayName(profile.FirstName, profile.LastName)
	}
	if err != nil {
		r.logger.Error("Failed to look up profile", zap.Int64("user_id", target), zap.Error(err))
	}

	latest, err := r.subs.LatestBySender(target)
	if err == nil && latest != nil {
		return models.DisplayName(latest.FirstName, latest.LastName)
	}
	if err != nil {
		r.logger.Error("Failed to look up latest submission", zap.Int64("user_id", target), zap.Error(err))
	}

	return models.DisplayName("", "")
}

// notify sends a plain-text notice, logging (not propagating) failure.
func (r *Router) notify(to int64, text string) {
	if err := r.transport.Deliver(to, Delivery{Kind: models.MediaText, Text: text}); err != nil {
		r.logger.Error("Failed to send notice", zap.Int64("to", to), zap.Error(err))
	}
}
