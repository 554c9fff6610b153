package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"todo-planner/internal/model"
)

// NotificationSink shows user-visible notifications and owns the user's
// consent to receive them.
type NotificationSink interface {
	PermissionState() model.Permission
	RequestPermission(ctx context.Context) (model.Permission, error)
	Show(title, body string) error
}

// NotificationKind distinguishes the two timers of a detail session.
type NotificationKind int

const (
	KindReminder NotificationKind = iota
	KindDueDate
)

func (k NotificationKind) String() string {
	if k == KindReminder {
		return "Reminder"
	}
	return "Due Date"
}

type SchedulerState int

const (
	StateIdle SchedulerState = iota
	StateArmed
	StateStopped
)

func (s SchedulerState) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// ScheduleInput is the dependency set that drives a scheduler session.
type ScheduleInput struct {
	Title    string
	Reminder *string
	DueDate  *string
	Repeat   *model.Repeat
}

// ScheduleInputFor extracts the scheduling fields of a task.
func ScheduleInputFor(t model.Task) ScheduleInput {
	t = t.Clone()
	return ScheduleInput{Title: t.Text, Reminder: t.Reminder, DueDate: t.DueDate, Repeat: t.Repeat}
}

// Equal reports whether two inputs would arm the same timers.
func (in ScheduleInput) Equal(other ScheduleInput) bool {
	return in.Title == other.Title &&
		equalPtr(in.Reminder, other.Reminder) &&
		equalPtr(in.DueDate, other.DueDate) &&
		equalPtr(in.Repeat, other.Repeat)
}

type armedTimer struct {
	kind   NotificationKind
	target time.Time
	timer  Timer
}

type pendingArm struct {
	kind   NotificationKind
	target time.Time
}

// NotificationScheduler arms the reminder and due-date timers of one detail
// session. Every Sync tears the previous timers down before arming new ones;
// a timer that fires after teardown is ignored.
type NotificationScheduler struct {
	clock  Clock
	timers Timers
	sink   NotificationSink

	mu         sync.Mutex
	generation uint64
	input      ScheduleInput
	armed      map[NotificationKind]*armedTimer
	waiting    []pendingArm
	cancelAsk  context.CancelFunc
	denied     bool
	stopped    bool
}

// NewNotificationScheduler builds a scheduler session. A nil sink means the
// platform cannot show notifications; the scheduler then never arms.
func NewNotificationScheduler(clock Clock, timers Timers, sink NotificationSink) *NotificationScheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &NotificationScheduler{
		clock:  clock,
		timers: timers,
		sink:   sink,
		armed:  make(map[NotificationKind]*armedTimer),
	}
}

// Sync re-arms the session for a new dependency set.
func (s *NotificationScheduler) Sync(in ScheduleInput) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.teardownLocked()
	s.generation++
	s.input = in

	if s.sink == nil || s.timers == nil {
		return
	}

	now := s.clock.Now()
	if in.Reminder != nil {
		if target, ok := model.ResolveDate(*in.Reminder, now); ok {
			s.scheduleLocked(KindReminder, target, now)
		}
	}
	if in.DueDate != nil {
		if target, ok := model.ResolveDate(*in.DueDate, now); ok {
			s.scheduleLocked(KindDueDate, target, now)
		}
	}
}

// CancelReminder disarms the reminder timer only.
func (s *NotificationScheduler) CancelReminder() {
	s.cancel(KindReminder)
}

// CancelDueDate disarms the due-date timer only.
func (s *NotificationScheduler) CancelDueDate() {
	s.cancel(KindDueDate)
}

// Stop tears the session down for good.
func (s *NotificationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.generation++
	s.stopped = true
}

func (s *NotificationScheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return StateStopped
	case len(s.armed) > 0:
		return StateArmed
	default:
		return StateIdle
	}
}

// Armed returns the target instant of an armed timer.
func (s *NotificationScheduler) Armed(kind NotificationKind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.armed[kind]
	if !ok {
		return time.Time{}, false
	}
	return entry.target, true
}

func (s *NotificationScheduler) cancel(kind NotificationKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.armed[kind]; ok {
		entry.timer.Stop()
		delete(s.armed, kind)
	}
	kept := s.waiting[:0]
	for _, w := range s.waiting {
		if w.kind != kind {
			kept = append(kept, w)
		}
	}
	s.waiting = kept

	switch kind {
	case KindReminder:
		s.input.Reminder = nil
	case KindDueDate:
		s.input.DueDate = nil
	}
}

func (s *NotificationScheduler) scheduleLocked(kind NotificationKind, target, now time.Time) {
	if !target.After(now) {
		// Overdue fires at most once and only with consent already given.
		if s.sink.PermissionState() == model.PermissionGranted {
			s.showLocked(kind, target, true)
		}
		return
	}
	if s.denied {
		return
	}

	switch s.sink.PermissionState() {
	case model.PermissionGranted:
		s.armLocked(kind, target)
	case model.PermissionDenied:
		s.denied = true
		log.Printf("[warn] notifications are denied, %s for %q not scheduled", kind, s.input.Title)
	default:
		s.askLocked(kind, target)
	}
}

func (s *NotificationScheduler) askLocked(kind NotificationKind, target time.Time) {
	s.waiting = append(s.waiting, pendingArm{kind: kind, target: target})
	if s.cancelAsk != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelAsk = cancel
	generation := s.generation

	go func() {
		perm, err := s.sink.RequestPermission(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || generation != s.generation {
			return
		}
		s.cancelAsk = nil
		waiting := s.waiting
		s.waiting = nil

		if err != nil {
			log.Printf("[warn] request notification permission: %v", err)
			return
		}
		if perm != model.PermissionGranted {
			s.denied = true
			log.Printf("[warn] notification permission denied, cannot schedule notification")
			return
		}

		now := s.clock.Now()
		for _, w := range waiting {
			if w.target.After(now) {
				s.armLocked(w.kind, w.target)
			} else {
				s.showLocked(w.kind, w.target, true)
			}
		}
	}()
}

func (s *NotificationScheduler) armLocked(kind NotificationKind, target time.Time) {
	entry := &armedTimer{kind: kind, target: target}
	generation := s.generation
	delay := target.Sub(s.clock.Now())
	entry.timer = s.timers.AfterFunc(delay, func() { s.fire(generation, entry) })
	s.armed[kind] = entry
}

func (s *NotificationScheduler) fire(generation uint64, entry *armedTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || generation != s.generation || s.armed[entry.kind] != entry {
		return
	}
	delete(s.armed, entry.kind)
	s.showLocked(entry.kind, entry.target, false)

	if entry.kind != KindReminder || s.input.Repeat == nil {
		return
	}
	next, ok := NextOccurrence(entry.target, *s.input.Repeat, s.clock.Now())
	if !ok {
		return
	}
	s.armLocked(KindReminder, next)
}

func (s *NotificationScheduler) showLocked(kind NotificationKind, target time.Time, overdue bool) {
	title, body := notificationText(kind, s.input.Title, target, overdue)
	if err := s.sink.Show(title, body); err != nil {
		log.Printf("[warn] show notification %q: %v", title, err)
	}
}

func (s *NotificationScheduler) teardownLocked() {
	for kind, entry := range s.armed {
		entry.timer.Stop()
		delete(s.armed, kind)
	}
	if s.cancelAsk != nil {
		s.cancelAsk()
		s.cancelAsk = nil
	}
	s.waiting = nil
}

func notificationText(kind NotificationKind, taskTitle string, target time.Time, overdue bool) (string, string) {
	if overdue {
		return fmt.Sprintf("%s Overdue!", kind),
			fmt.Sprintf("The due date for your task %q has passed.", taskTitle)
	}
	return fmt.Sprintf("%s Alert!", kind),
		fmt.Sprintf("Time to complete your task: %q. It's due on %s.", taskTitle, target.Format("2006-01-02 15:04"))
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
