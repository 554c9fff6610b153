package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-planner/internal/model"
)

type schedulerFixture struct {
	clock  *fakeClock
	timers *fakeTimers
	sink   *fakeSink
	sched  *NotificationScheduler
}

func newSchedulerFixture(perm model.Permission) *schedulerFixture {
	clock := newFakeClock(refNow)
	timers := newFakeTimers(clock)
	sink := newFakeSink(perm)
	return &schedulerFixture{
		clock:  clock,
		timers: timers,
		sink:   sink,
		sched:  NewNotificationScheduler(clock, timers, sink),
	}
}

func TestSchedulerOverdueDueDateShowsOnce(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{Title: "Pay rent", DueDate: strPtr("2024-03-13T09:00:00Z")})

	got := f.sink.Shown()
	require.Len(t, got, 1)
	assert.Equal(t, "Due Date Overdue!", got[0].title)
	assert.Equal(t, `The due date for your task "Pay rent" has passed.`, got[0].body)
	assert.Zero(t, f.timers.Pending())
	assert.Equal(t, StateIdle, f.sched.State())

	f.timers.Advance(48 * time.Hour)
	assert.Len(t, f.sink.Shown(), 1)
}

func TestSchedulerOverdueWithoutConsentIsSilent(t *testing.T) {
	f := newSchedulerFixture(model.PermissionDefault)

	f.sched.Sync(ScheduleInput{Title: "Pay rent", Reminder: strPtr("2024-03-13T09:00:00Z")})

	assert.Empty(t, f.sink.Shown())
	assert.Zero(t, f.sink.Requests())
}

func TestSchedulerFiresReminder(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{Title: "Call mom", Reminder: strPtr("2024-03-14T12:00:00Z")})

	at, ok := f.sched.Armed(KindReminder)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC), at)
	assert.Equal(t, StateArmed, f.sched.State())

	f.timers.Advance(time.Hour)
	assert.Empty(t, f.sink.Shown())

	f.timers.Advance(30 * time.Minute)
	got := f.sink.Shown()
	require.Len(t, got, 1)
	assert.Equal(t, "Reminder Alert!", got[0].title)
	assert.Equal(t, `Time to complete your task: "Call mom". It's due on 2024-03-14 12:00.`, got[0].body)
	assert.Equal(t, StateIdle, f.sched.State())
}

func TestSchedulerDailyReminderChains(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{
		Title:    "Stretch",
		Reminder: strPtr("2024-03-14T12:00:00Z"),
		Repeat:   repeatPtr(model.RepeatDaily),
	})

	f.timers.Advance(90 * time.Minute)
	require.Len(t, f.sink.Shown(), 1)
	next, ok := f.sched.Armed(KindReminder)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC), next)

	f.timers.Advance(24 * time.Hour)
	require.Len(t, f.sink.Shown(), 2)
	next, ok = f.sched.Armed(KindReminder)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.March, 16, 12, 0, 0, 0, time.UTC), next)
}

func TestSchedulerDueDateDoesNotRepeat(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{
		Title:   "Report",
		DueDate: strPtr("2024-03-14T11:00:00Z"),
		Repeat:  repeatPtr(model.RepeatDaily),
	})

	f.timers.Advance(time.Hour)
	got := f.sink.Shown()
	require.Len(t, got, 1)
	assert.Equal(t, "Due Date Alert!", got[0].title)
	_, ok := f.sched.Armed(KindDueDate)
	assert.False(t, ok)
	assert.Zero(t, f.timers.Pending())
}

func TestSchedulerCustomRepeatIsTerminal(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{
		Title:    "Odd one",
		Reminder: strPtr("2024-03-14T11:00:00Z"),
		Repeat:   repeatPtr(model.RepeatCustom),
	})

	f.timers.Advance(time.Hour)
	assert.Len(t, f.sink.Shown(), 1)
	assert.Zero(t, f.timers.Pending())
}

func TestSchedulerCancelReminderBeforeFire(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{
		Title:    "Water plants",
		Reminder: strPtr("2024-03-14T11:00:00Z"),
		DueDate:  strPtr("2024-03-14T12:00:00Z"),
	})
	f.sched.CancelReminder()

	_, ok := f.sched.Armed(KindReminder)
	assert.False(t, ok)
	_, ok = f.sched.Armed(KindDueDate)
	assert.True(t, ok)

	f.timers.Advance(2 * time.Hour)
	got := f.sink.Shown()
	require.Len(t, got, 1)
	assert.Equal(t, "Due Date Alert!", got[0].title)
}

func TestSchedulerSyncReplacesTimers(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{Title: "Old", Reminder: strPtr("2024-03-14T11:00:00Z")})
	f.sched.Sync(ScheduleInput{Title: "New", Reminder: strPtr("2024-03-14T13:00:00Z")})
	assert.Equal(t, 1, f.timers.Pending())

	f.timers.Advance(time.Hour)
	assert.Empty(t, f.sink.Shown())

	f.timers.Advance(2 * time.Hour)
	got := f.sink.Shown()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].body, `"New"`)
}

func TestSchedulerAsksPermissionOnce(t *testing.T) {
	f := newSchedulerFixture(model.PermissionDefault)

	f.sched.Sync(ScheduleInput{
		Title:    "Dentist",
		Reminder: strPtr("2024-03-14T11:00:00Z"),
		DueDate:  strPtr("2024-03-14T12:00:00Z"),
	})

	require.Eventually(t, func() bool {
		_, reminder := f.sched.Armed(KindReminder)
		_, due := f.sched.Armed(KindDueDate)
		return reminder && due
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.sink.Requests())

	f.timers.Advance(2 * time.Hour)
	assert.Len(t, f.sink.Shown(), 2)
}

func TestSchedulerDeniedPermissionSuppresses(t *testing.T) {
	f := newSchedulerFixture(model.PermissionDefault)
	f.sink.answer = model.PermissionDenied

	in := ScheduleInput{Title: "Gym", Reminder: strPtr("2024-03-14T11:00:00Z")}
	f.sched.Sync(in)
	require.Eventually(t, func() bool {
		return f.sink.PermissionState() == model.PermissionDenied
	}, time.Second, 5*time.Millisecond)

	f.sched.Sync(in)
	f.timers.Advance(2 * time.Hour)

	assert.Equal(t, 1, f.sink.Requests())
	assert.Empty(t, f.sink.Shown())
	assert.Zero(t, f.timers.Pending())
}

func TestSchedulerStopCancelsPendingRequest(t *testing.T) {
	f := newSchedulerFixture(model.PermissionDefault)
	f.sink.block = true

	f.sched.Sync(ScheduleInput{Title: "Gym", Reminder: strPtr("2024-03-14T11:00:00Z")})
	require.Eventually(t, func() bool { return f.sink.Requests() == 1 }, time.Second, 5*time.Millisecond)

	f.sched.Stop()
	require.Eventually(t, func() bool { return f.sink.Cancelled() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateStopped, f.sched.State())
	assert.Zero(t, f.timers.Pending())
}

func TestSchedulerStopDisarms(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{Title: "Gym", Reminder: strPtr("2024-03-14T11:00:00Z")})
	f.sched.Stop()
	f.sched.Sync(ScheduleInput{Title: "Gym", Reminder: strPtr("2024-03-14T11:30:00Z")})

	f.timers.Advance(2 * time.Hour)
	assert.Empty(t, f.sink.Shown())
	assert.Equal(t, StateStopped, f.sched.State())
}

func TestSchedulerWithoutSinkIsInert(t *testing.T) {
	clock := newFakeClock(refNow)
	timers := newFakeTimers(clock)
	sched := NewNotificationScheduler(clock, timers, nil)

	sched.Sync(ScheduleInput{Title: "Gym", Reminder: strPtr("2024-03-14T11:00:00Z")})

	assert.Zero(t, timers.Pending())
	assert.Equal(t, StateIdle, sched.State())
}

func TestSchedulerIgnoresUnparseableDates(t *testing.T) {
	f := newSchedulerFixture(model.PermissionGranted)

	f.sched.Sync(ScheduleInput{Title: "Gym", Reminder: strPtr("someday"), DueDate: strPtr("")})

	assert.Zero(t, f.timers.Pending())
	assert.Empty(t, f.sink.Shown())
}

func TestScheduleInputEqual(t *testing.T) {
	a := ScheduleInput{Title: "x", Reminder: strPtr("Today")}
	b := ScheduleInput{Title: "x", Reminder: strPtr("Today")}
	assert.True(t, a.Equal(b))

	b.Repeat = repeatPtr(model.RepeatDaily)
	assert.False(t, a.Equal(b))
}
