package router

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"anonbox/internal/apperrors"
	"anonbox/internal/models"
	"anonbox/internal/replymode"
	"anonbox/internal/repository"
)

var testAdminIDs = []int64{100, 101}

type delivered struct {
	to int64
	d  Delivery
}

// fakeTransport records every delivery and can be told to fail for
// specific recipients.
type fakeTransport struct {
	mu     sync.Mutex
	sent   []delivered
	failTo map[int64]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failTo: make(map[int64]bool)}
}

func (f *fakeTransport) Deliver(to int64, d Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return fmt.Errorf("transport down for %d", to)
	}
	f.sent = append(f.sent, delivered{to: to, d: d})
	return nil
}

func (f *fakeTransport) sentTo(to int64) []Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Delivery
	for _, s := range f.sent {
		if s.to == to {
			out = append(out, s.d)
		}
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

type testEnv struct {
	router    *Router
	transport *fakeTransport
	users     repository.UserRepository
	blocks    repository.BlockRepository
	subs      repository.SubmissionRepository
	tracker   *replymode.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	f, err := os.CreateTemp("", "anonbox-router-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	logger := zap.NewNop()
	db, err := repository.NewSQLiteDB(f.Name(), logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repository.MigrateDB(db, "../../migrations", logger)

	env := &testEnv{
		transport: newFakeTransport(),
		users:     repository.NewUserRepository(db, logger),
		blocks:    repository.NewBlockRepository(db, testAdminIDs, logger),
		subs:      repository.NewSubmissionRepository(db, 1000, logger),
		tracker:   replymode.NewTracker(),
	}
	env.router = NewRouter(env.users, env.blocks, env.subs, env.tracker, env.transport, testAdminIDs, logger)
	return env
}

func userSender(id int64) Sender {
	return Sender{ID: id, Username: fmt.Sprintf("user%d", id), FirstName: "U", LastName: fmt.Sprintf("%d", id)}
}

func textMsg(text string) Inbound {
	return Inbound{Kind: models.MediaText, Text: text, MessageID: 1, ChatID: 1}
}

func TestFreshSubmissionFansOut(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.HandleMessage(userSender(1), textMsg("hello admins")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	// Exactly one record appended.
	total, err := env.subs.CountTotal()
	if err != nil {
		t.Fatalf("CountTotal: %v", err)
	}
	if total != 1 {
		t.Fatalf("submission count = %d, want 1", total)
	}

	// One delivery per admin, carrying metadata, content and the reply
	// affordance pointing back at the sender.
	for _, adminID := range testAdminIDs {
		got := env.transport.sentTo(adminID)
		if len(got) != 1 {
			t.Fatalf("admin %d received %d deliveries, want 1", adminID, len(got))
		}
		if !strings.Contains(got[0].Text, "hello admins") || !strings.Contains(got[0].Text, "ID: 1") {
			t.Errorf("admin %d text missing content or metadata: %q", adminID, got[0].Text)
		}
		if got[0].ReplyTo != 1 {
			t.Errorf("admin %d ReplyTo = %d, want 1", adminID, got[0].ReplyTo)
		}
	}

	// Sender acknowledged.
	acks := env.transport.sentTo(1)
	if len(acks) != 1 || acks[0].Text != noticeSubmissionSent {
		t.Fatalf("sender acks = %+v, want one %q", acks, noticeSubmissionSent)
	}

	// Profile recorded.
	profile, err := env.users.GetByID(1)
	if err != nil || profile == nil {
		t.Fatalf("profile not recorded: %v %v", profile, err)
	}
}

func TestSubmissionAckedDespiteAdminFailure(t *testing.T) {
	env := newTestEnv(t)
	env.transport.failTo[100] = true

	if err := env.router.HandleMessage(userSender(1), textMsg("hi")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	// Other admin still got it, sender still acknowledged.
	if got := env.transport.sentTo(101); len(got) != 1 {
		t.Fatalf("admin 101 received %d deliveries, want 1", len(got))
	}
	acks := env.transport.sentTo(1)
	if len(acks) != 1 || acks[0].Text != noticeSubmissionSent {
		t.Fatalf("sender acks = %+v, want one %q", acks, noticeSubmissionSent)
	}
}

func TestBlockedSenderRejected(t *testing.T) {
	env := newTestEnv(t)

	if err := env.blocks.Block(&models.BlockRecord{UserID: 1, BlockedBy: 100, Reason: "spam"}); err != nil {
		t.Fatalf("Block: %v", err)
	}

	err := env.router.HandleMessage(userSender(1), textMsg("let me in"))
	if !errors.Is(err, apperrors.ErrBlockedSender) {
		t.Fatalf("HandleMessage error = %v, want ErrBlockedSender", err)
	}

	// No submission, no fan-out; sender notified.
	if total, _ := env.subs.CountTotal(); total != 0 {
		t.Fatalf("submission logged for blocked sender")
	}
	if got := env.transport.sentTo(100); len(got) != 0 {
		t.Fatalf("blocked sender's message reached an admin: %+v", got)
	}
	notices := env.transport.sentTo(1)
	if len(notices) != 1 || notices[0].Text != noticeSenderBlocked {
		t.Fatalf("sender notices = %+v, want one %q", notices, noticeSenderBlocked)
	}
}

func TestUserReplyFlow(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.BeginReply(userSender(1), 100); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	if target, ok := env.tracker.Target(1); !ok || target != 100 {
		t.Fatalf("tracker target = %d, %v; want 100, true", target, ok)
	}
	env.transport.reset()

	if err := env.router.HandleMessage(userSender(1), textMsg("my answer")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	// Delivered to the targeted admin only, with sender metadata.
	got := env.transport.sentTo(100)
	if len(got) != 1 {
		t.Fatalf("admin 100 received %d deliveries, want 1", len(got))
	}
	if !strings.Contains(got[0].Text, "my answer") || !strings.Contains(got[0].Text, "ID: 1") {
		t.Errorf("reply text missing content or metadata: %q", got[0].Text)
	}
	if other := env.transport.sentTo(101); len(other) != 0 {
		t.Fatalf("reply fanned out to non-targeted admin: %+v", other)
	}

	// Not a submission, state cleared, sender acknowledged.
	if total, _ := env.subs.CountTotal(); total != 0 {
		t.Fatalf("directed reply was logged as a submission")
	}
	if _, ok := env.tracker.Target(1); ok {
		t.Fatal("reply state not cleared after successful send")
	}
	acks := env.transport.sentTo(1)
	if len(acks) != 1 || acks[0].Text != noticeUserReplySent {
		t.Fatalf("sender acks = %+v, want one %q", acks, noticeUserReplySent)
	}
}

func TestUserReplyFailureRetainsState(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.BeginReply(userSender(1), 100); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	env.transport.failTo[100] = true

	err := env.router.HandleMessage(userSender(1), textMsg("lost?"))
	if !apperrors.IsDeliveryError(err) {
		t.Fatalf("HandleMessage error = %v, want DeliveryError", err)
	}
	if _, ok := env.tracker.Target(1); !ok {
		t.Fatal("reply state cleared on delivery failure")
	}
}

func TestUserBeginReplyNonAdminRejected(t *testing.T) {
	env := newTestEnv(t)

	err := env.router.BeginReply(userSender(1), 555)
	if !errors.Is(err, apperrors.ErrInvalidReplyTarget) {
		t.Fatalf("BeginReply error = %v, want ErrInvalidReplyTarget", err)
	}
	if _, ok := env.tracker.Target(1); ok {
		t.Fatal("state changed by rejected reply intent")
	}
}

func TestAdminIdleMessageRejected(t *testing.T) {
	env := newTestEnv(t)

	err := env.router.HandleMessage(userSender(100), textMsg("to whom?"))
	if !errors.Is(err, apperrors.ErrUnknownTarget) {
		t.Fatalf("HandleMessage error = %v, want ErrUnknownTarget", err)
	}
	notices := env.transport.sentTo(100)
	if len(notices) != 1 || notices[0].Text != noticeAdminNoTarget {
		t.Fatalf("admin notices = %+v, want one %q", notices, noticeAdminNoTarget)
	}
}

func TestAdminReplyFlow(t *testing.T) {
	env := newTestEnv(t)

	// User is known from an earlier submission.
	if err := env.router.HandleMessage(userSender(1), textMsg("question")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := env.router.BeginReply(userSender(100), 1); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	env.transport.reset()

	if err := env.router.HandleMessage(userSender(100), textMsg("the answer")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	got := env.transport.sentTo(1)
	if len(got) != 1 {
		t.Fatalf("user received %d deliveries, want 1", len(got))
	}
	// Operator identity is not exposed to the user.
	if !strings.Contains(got[0].Text, "Ответ от администратора") || strings.Contains(got[0].Text, "ID: 100") {
		t.Errorf("unexpected reply text: %q", got[0].Text)
	}
	if got[0].ReplyTo != 100 {
		t.Errorf("ReplyTo = %d, want 100 (affordance still carries the counterpart)", got[0].ReplyTo)
	}

	if _, ok := env.tracker.Target(100); ok {
		t.Fatal("admin reply state not cleared after successful send")
	}
	confirms := env.transport.sentTo(100)
	if len(confirms) != 1 || !strings.Contains(confirms[0].Text, "1") {
		t.Fatalf("admin confirmations = %+v", confirms)
	}
}

func TestAdminReplyToBlockedUserCleared(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.BeginReply(userSender(100), 1); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	// User gets blocked between invitation and send.
	if err := env.blocks.Block(&models.BlockRecord{UserID: 1, BlockedBy: 101, Reason: "spam"}); err != nil {
		t.Fatalf("Block: %v", err)
	}
	env.transport.reset()

	err := env.router.HandleMessage(userSender(100), textMsg("too late"))
	if !errors.Is(err, apperrors.ErrBlockedTarget) {
		t.Fatalf("HandleMessage error = %v, want ErrBlockedTarget", err)
	}
	if _, ok := env.tracker.Target(100); ok {
		t.Fatal("admin state not cleared for blocked target")
	}
	if got := env.transport.sentTo(1); len(got) != 0 {
		t.Fatalf("blocked user received deliveries: %+v", got)
	}
	notices := env.transport.sentTo(100)
	if len(notices) != 1 || notices[0].Text != noticeTargetBlocked {
		t.Fatalf("admin notices = %+v, want one %q", notices, noticeTargetBlocked)
	}
}

func TestAdminReplyFailureRetainsState(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.BeginReply(userSender(100), 1); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	env.transport.failTo[1] = true

	err := env.router.HandleMessage(userSender(100), textMsg("retry me"))
	if !apperrors.IsDeliveryError(err) {
		t.Fatalf("HandleMessage error = %v, want DeliveryError", err)
	}
	if target, ok := env.tracker.Target(100); !ok || target != 1 {
		t.Fatal("admin state lost on delivery failure; retry would need re-targeting")
	}
}

func TestCancelReply(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.BeginReply(userSender(100), 1); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	env.transport.reset()

	if !env.router.CancelReply(100) {
		t.Fatal("CancelReply = false with a pending reply")
	}
	if _, ok := env.tracker.Target(100); ok {
		t.Fatal("target survived cancel")
	}
	// Cancel sends nothing by itself.
	if len(env.transport.sent) != 0 {
		t.Fatalf("cancel produced deliveries: %+v", env.transport.sent)
	}
	if env.router.CancelReply(100) {
		t.Fatal("CancelReply = true with no pending reply")
	}
}

func TestVoiceSubmissionIsTwoSendsOneRecord(t *testing.T) {
	env := newTestEnv(t)

	msg := Inbound{Kind: models.MediaVoice, FileID: "voice-file", MessageID: 2, ChatID: 1}
	if err := env.router.HandleMessage(userSender(1), msg); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	for _, adminID := range testAdminIDs {
		got := env.transport.sentTo(adminID)
		if len(got) != 2 {
			t.Fatalf("admin %d received %d deliveries, want 2 (header + voice)", adminID, len(got))
		}
		if got[0].Kind != models.MediaText || got[0].ReplyTo != 1 {
			t.Errorf("first send should be the metadata text with the reply affordance: %+v", got[0])
		}
		if got[1].Kind != models.MediaVoice || got[1].FileID != "voice-file" {
			t.Errorf("second send should be the voice media: %+v", got[1])
		}
	}

	if total, _ := env.subs.CountTotal(); total != 1 {
		t.Fatalf("submission count = %d, want 1 (one logical message)", total)
	}
}

func TestBlockSnapshotAndNotification(t *testing.T) {
	env := newTestEnv(t)

	// Known user via directory.
	if _, err := env.users.Upsert(1, "alice", "Alice", "Smith"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec, known, err := env.router.Block(1, 100, "spam")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !known || rec.FirstName != "Alice" || rec.Username != "alice" {
		t.Fatalf("snapshot not taken from directory: known=%v rec=%+v", known, rec)
	}
	notices := env.transport.sentTo(1)
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "spam") {
		t.Fatalf("blocked user notices = %+v", notices)
	}

	if _, _, err := env.router.Block(1, 100, "again"); !errors.Is(err, apperrors.ErrAlreadyBlocked) {
		t.Fatalf("second Block error = %v, want ErrAlreadyBlocked", err)
	}
	if _, _, err := env.router.Block(101, 100, "no"); !errors.Is(err, apperrors.ErrInvalidBlockTarget) {
		t.Fatalf("Block(admin) error = %v, want ErrInvalidBlockTarget", err)
	}
}

func TestBlockSnapshotFallsBackToSubmissionLog(t *testing.T) {
	env := newTestEnv(t)

	// No directory entry, but a logged submission.
	if err := env.subs.Append(&models.Submission{UserID: 2, Username: "ghost", FirstName: "G", MediaType: models.MediaText}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rec, known, err := env.router.Block(2, 100, "spam")
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !known || rec.Username != "ghost" {
		t.Fatalf("snapshot not taken from submission log: known=%v rec=%+v", known, rec)
	}
}

func TestUnblock(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.router.Block(1, 100, "spam"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	env.transport.reset()

	rec, err := env.router.Unblock(1, 100)
	if err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if rec == nil || rec.Reason != "spam" {
		t.Fatalf("Unblock record = %+v", rec)
	}
	notices := env.transport.sentTo(1)
	if len(notices) != 1 || notices[0].Text != unblockedNotice {
		t.Fatalf("unblocked user notices = %+v", notices)
	}

	if _, err := env.router.Unblock(1, 100); !errors.Is(err, apperrors.ErrNotBlocked) {
		t.Fatalf("second Unblock error = %v, want ErrNotBlocked", err)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.HandleMessage(userSender(1), textMsg("a")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if err := env.router.HandleMessage(userSender(2), textMsg("b")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, _, err := env.router.Block(2, 100, "spam"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := env.router.Unblock(2, 100); err != nil {
		t.Fatalf("Unblock: %v", err)
	}

	stats, err := env.router.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NewUsersToday != 2 || stats.TotalUsers != 2 {
		t.Errorf("user stats = %+v", stats)
	}
	if stats.SubmissionsToday != 2 || stats.TotalSubmissions != 2 {
		t.Errorf("submission stats = %+v", stats)
	}
	if stats.BlockedToday != 1 || stats.UnblockedToday != 1 || stats.TotalBlocked != 0 {
		t.Errorf("block stats = %+v", stats)
	}
}

func TestOnboard(t *testing.T) {
	env := newTestEnv(t)

	if err := env.router.Onboard(userSender(1)); err != nil {
		t.Fatalf("Onboard: %v", err)
	}
	if profile, _ := env.users.GetByID(1); profile == nil {
		t.Fatal("profile not recorded on onboarding")
	}
	notices := env.transport.sentTo(1)
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "анонимных") {
		t.Fatalf("welcome notices = %+v", notices)
	}

	// Blocked users get the rejection, but the visit is still recorded.
	if err := env.blocks.Block(&models.BlockRecord{UserID: 2, BlockedBy: 100, Reason: "x"}); err != nil {
		t.Fatalf("Block: %v", err)
	}
	err := env.router.Onboard(userSender(2))
	if !errors.Is(err, apperrors.ErrBlockedSender) {
		t.Fatalf("Onboard error = %v, want ErrBlockedSender", err)
	}
	if profile, _ := env.users.GetByID(2); profile == nil {
		t.Fatal("blocked visitor's profile not recorded")
	}
}
