package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/model"
)

const (
	cbPermGranted = "perm:granted"
	cbPermDenied  = "perm:denied"
)

// sender is the part of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type permissionStore interface {
	SetNotificationPermission(ctx context.Context, userID string, perm model.Permission) error
}

// chatSink delivers notifications into a user's private chat. The consent
// prompt is an inline keyboard; the answer arrives as a callback.
type chatSink struct {
	api    sender
	perms  permissionStore
	userID string
	chatID int64

	mu       sync.Mutex
	state    model.Permission
	prompted bool
	waiters  []chan model.Permission
}

func newChatSink(api sender, perms permissionStore, user *model.User) *chatSink {
	state := user.NotificationPermission
	if state == "" {
		state = model.PermissionDefault
	}
	return &chatSink{
		api:    api,
		perms:  perms,
		userID: user.ID,
		chatID: chatIDFor(user),
		state:  state,
	}
}

func (s *chatSink) PermissionState() model.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestPermission sends the consent prompt once and waits for the answer
// or for ctx to end.
func (s *chatSink) RequestPermission(ctx context.Context) (model.Permission, error) {
	s.mu.Lock()
	if s.state != model.PermissionDefault {
		state := s.state
		s.mu.Unlock()
		return state, nil
	}
	ch := make(chan model.Permission, 1)
	s.waiters = append(s.waiters, ch)
	first := !s.prompted
	s.prompted = true
	s.mu.Unlock()

	if first {
		if err := s.Prompt(); err != nil {
			s.dropWaiter(ch)
			s.mu.Lock()
			s.prompted = false
			s.mu.Unlock()
			return model.PermissionDefault, err
		}
	}

	select {
	case perm := <-ch:
		return perm, nil
	case <-ctx.Done():
		s.dropWaiter(ch)
		return model.PermissionDefault, ctx.Err()
	}
}

// Prompt sends the consent question.
func (s *chatSink) Prompt() error {
	msg := tgbotapi.NewMessage(s.chatID, "🔔 Allow this bot to send you reminder and due date notifications?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Allow", cbPermGranted),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Block", cbPermDenied),
		),
	)
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send permission prompt: %w", err)
	}
	return nil
}

// Answer records the user's decision and wakes every pending request.
func (s *chatSink) Answer(perm model.Permission) {
	s.mu.Lock()
	s.state = perm
	s.prompted = false
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- perm
	}
	if s.perms != nil {
		if err := s.perms.SetNotificationPermission(context.Background(), s.userID, perm); err != nil {
			log.Printf("[warn] persist notification permission for %s: %v", s.userID, err)
		}
	}
}

func (s *chatSink) Show(title, body string) error {
	text := fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(title), escape(body))
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (s *chatSink) dropWaiter(ch chan model.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if w != ch {
			kept = append(kept, w)
		}
	}
	s.waiters = kept
}

func chatIDFor(user *model.User) int64 {
	if user.ChatID != 0 {
		return user.ChatID
	}
	return user.TelegramID
}
