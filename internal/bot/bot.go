package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

const (
	menuLabelTasks     = "📋 Tasks"
	menuLabelToday     = "☀️ My Day"
	menuLabelImportant = "⭐ Important"
	menuLabelPlanned   = "📅 Planned"
	menuLabelHelp      = "ℹ️ Help"
)

// AttachmentStore uploads attachments and reads them back by the URL the
// upload returned.
type AttachmentStore interface {
	service.FileStore
	OpenURL(raw string) (io.ReadCloser, error)
}

// Deps are the stores and services shared by every chat session.
type Deps struct {
	Users  *repository.UserRepository
	Tasks  *repository.TaskRepository
	Files  AttachmentStore
	Timers service.Timers
	Sorter *service.Sorter
	HTTP   *http.Client
}

// session is one signed-in Telegram user with a live task board.
type session struct {
	user  *model.User
	board *service.TaskBoard
	sink  *chatSink

	mu     sync.Mutex
	view   service.View
	listed []string
}

func (s *session) setListing(view service.View, tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	s.listed = make([]string, 0, len(tasks))
	for _, t := range tasks {
		s.listed = append(s.listed, t.ID)
	}
}

func (s *session) currentView() service.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == "" {
		return service.ViewAll
	}
	return s.view
}

// resolveRef maps "3" to the third task of the last listing, or of the
// current view when nothing was listed yet; anything else is taken as a
// task id.
func (s *session) resolveRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listed == nil {
			view := s.view
			if view == "" {
				view = service.ViewAll
			}
			s.listed = []string{}
			for _, t := range s.board.View(view) {
				s.listed = append(s.listed, t.ID)
			}
		}
		if n < 1 || n > len(s.listed) {
			return "", fmt.Errorf("%w: no task #%d in the last list", service.ErrTaskNotFound, n)
		}
		return s.listed[n-1], nil
	}
	if ref == "" {
		return "", service.ErrTaskNotFound
	}
	return ref, nil
}

// Bot aggregates the Telegram API with the task boards of its users.
type Bot struct {
	api    sender
	poller *tgbotapi.BotAPI
	deps   Deps

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, deps)
	b.poller = api
	return b, nil
}

func newBot(api sender, deps Deps) *Bot {
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: time.Minute}
	}
	if deps.Sorter == nil {
		deps.Sorter = service.NewSorter("en")
	}
	return &Bot{
		api:      api,
		deps:     deps,
		sessions: make(map[int64]*session),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return fmt.Errorf("bot has no update source")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.poller.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.poller.StopReceivingUpdates()
	}()
	defer b.Close()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

// Close stops every board and its timers.
func (b *Bot) Close() {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[int64]*session)
	b.mu.Unlock()

	for _, s := range sessions {
		s.board.Stop()
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	sess, err := b.sessionFor(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return err
	}

	if msg.Document != nil {
		return b.handleDocument(ctx, sess, msg)
	}
	if handled, err := b.handleMenuAlias(ctx, sess, msg); handled {
		return err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	return b.addTask(ctx, sess, msg.Chat.ID, msg.Text)
}

// sessionFor signs the Telegram user in on first contact.
func (b *Bot) sessionFor(ctx context.Context, from *tgbotapi.User, chatID int64) (*session, error) {
	b.mu.Lock()
	sess, ok := b.sessions[from.ID]
	b.mu.Unlock()
	if ok {
		return sess, nil
	}

	user, err := b.deps.Users.UpsertFromTelegram(ctx, from.ID, chatID, from.FirstName, from.LastName, from.UserName)
	if err != nil {
		return nil, err
	}
	sink := newChatSink(b.api, b.deps.Users, user)
	board := service.NewTaskBoard(user.ID, service.BoardDeps{
		Store:  b.deps.Tasks,
		Files:  b.deps.Files,
		Timers: b.deps.Timers,
		Sink:   sink,
		Sorter: b.deps.Sorter,
	})
	fresh := &session{user: user, board: board, sink: sink, view: service.ViewAll}

	b.mu.Lock()
	if existing, ok := b.sessions[from.ID]; ok {
		b.mu.Unlock()
		return existing, nil
	}
	b.sessions[from.ID] = fresh
	b.mu.Unlock()

	board.Start()
	log.Printf("[info] session started for user %s (telegram %d)", user.ID, from.ID)
	return fresh, nil
}

func (b *Bot) endSession(telegramID int64) bool {
	b.mu.Lock()
	sess, ok := b.sessions[telegramID]
	delete(b.sessions, telegramID)
	b.mu.Unlock()
	if ok {
		sess.board.Stop()
	}
	return ok
}

// SendDailyDigest sends the morning summary to every known user.
func (b *Bot) SendDailyDigest(ctx context.Context) error {
	users, err := b.deps.Users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		tasks, err := b.deps.Tasks.List(ctx, user.ID)
		if err != nil {
			log.Printf("build digest for user %d: %v", user.TelegramID, err)
			continue
		}
		digest := service.BuildDigest(tasks, now)
		if digest.IsEmpty() {
			continue
		}
		if err := b.sendText(chatIDFor(&user), formatDigest(user.FirstName, digest, now)); err != nil {
			log.Printf("send digest to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendError(chatID int64, err error) error {
	return b.sendText(chatID, describeError(err))
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelImportant),
			tgbotapi.NewKeyboardButton(menuLabelPlanned),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
