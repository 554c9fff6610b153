package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"todo-planner/internal/model"
)

var refNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func repeatPtr(r model.Repeat) *model.Repeat { return &r }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeTimer struct {
	owner   *fakeTimers
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeTimers fires callbacks only when the test advances the clock.
type fakeTimers struct {
	clock *fakeClock

	mu      sync.Mutex
	entries []*fakeTimer
}

func newFakeTimers(clock *fakeClock) *fakeTimers { return &fakeTimers{clock: clock} }

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{owner: ft, at: ft.clock.Now().Add(d), f: f}
	ft.entries = append(ft.entries, t)
	return t
}

// Advance moves the clock forward and runs every timer that became due.
func (ft *fakeTimers) Advance(d time.Duration) {
	ft.clock.set(ft.clock.Now().Add(d))
	for {
		ft.mu.Lock()
		now := ft.clock.Now()
		var due []*fakeTimer
		for _, t := range ft.entries {
			if !t.stopped && !t.fired && !t.at.After(now) {
				t.fired = true
				due = append(due, t)
			}
		}
		ft.mu.Unlock()
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		for _, t := range due {
			t.f()
		}
	}
}

func (ft *fakeTimers) Pending() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, t := range ft.entries {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type shown struct {
	title string
	body  string
}

// fakeSink behaves like a platform prompt: answering a request updates the
// permission state.
type fakeSink struct {
	mu        sync.Mutex
	state     model.Permission
	answer    model.Permission
	block     bool
	requests  int
	cancelled int
	shown     []shown
}

func newFakeSink(state model.Permission) *fakeSink {
	return &fakeSink{state: state, answer: model.PermissionGranted}
}

func (s *fakeSink) PermissionState() model.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSink) RequestPermission(ctx context.Context) (model.Permission, error) {
	s.mu.Lock()
	s.requests++
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		s.mu.Lock()
		s.cancelled++
		s.mu.Unlock()
		return model.PermissionDefault, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.answer
	return s.answer, nil
}

func (s *fakeSink) Show(title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, shown{title: title, body: body})
	return nil
}

func (s *fakeSink) Shown() []shown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shown(nil), s.shown...)
}

func (s *fakeSink) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *fakeSink) Cancelled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// fakeStore keeps tasks in memory and pushes a snapshot, newest first, after
// every write.
type fakeStore struct {
	clock Clock

	mu        sync.Mutex
	tasks     []model.Task
	subs      map[int]func([]model.Task)
	nextSub   int
	nextID    int
	patches   []model.Patch
	updateErr error
	deleteErr error
}

func newFakeStore(clock Clock) *fakeStore {
	return &fakeStore{clock: clock, subs: make(map[int]func([]model.Task))}
}

func (s *fakeStore) Subscribe(userID string, onChange func([]model.Task)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()

	onChange(snap)
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *fakeStore) Create(ctx context.Context, userID string, in model.NewTask) (string, error) {
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("task-%d", s.nextID)
	created := s.clock.Now().Add(time.Duration(s.nextID) * time.Second)
	s.tasks = append(s.tasks, model.Task{ID: id, UserID: userID, Text: in.Text, CreatedAt: created, UpdatedAt: created})
	s.mu.Unlock()

	s.publish()
	return id, nil
}

// seed stores a task as is, without notifying subscribers.
func (s *fakeStore) seed(t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

func (s *fakeStore) Update(ctx context.Context, userID, id string, patch model.Patch) error {
	s.mu.Lock()
	s.patches = append(s.patches, patch)
	if s.updateErr != nil {
		s.mu.Unlock()
		return s.updateErr
	}
	found := false
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks[i] = patch.Apply(t)
			found = true
		}
	}
	s.mu.Unlock()

	if !found {
		return errors.New("not found")
	}
	s.publish()
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	if s.deleteErr != nil {
		s.mu.Unlock()
		return s.deleteErr
	}
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.mu.Unlock()

	s.publish()
	return nil
}

func (s *fakeStore) Patches() []model.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Patch(nil), s.patches...)
}

func (s *fakeStore) publish() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	subs := make([]func([]model.Task), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *fakeStore) snapshotLocked() []model.Task {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type fakeFiles struct {
	mu      sync.Mutex
	err     error
	uploads map[string]string
}

func newFakeFiles() *fakeFiles { return &fakeFiles{uploads: make(map[string]string)} }

func (f *fakeFiles) Upload(ctx context.Context, path string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[path] = string(data)
	return "file:///" + path, nil
}

func (f *fakeFiles) keyFor(t *testing.T, url string) string {
	t.Helper()
	key := strings.TrimPrefix(url, "file:///")
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.uploads[key]
	require.True(t, ok, "no upload behind %s", url)
	return key
}
