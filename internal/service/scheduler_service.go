package service

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService wraps cron-based jobs. Besides recurring jobs it hands out
// one-shot timers for reminder notifications.
type SchedulerService struct {
	cron *cron.Cron
	loc  *time.Location
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	if loc == nil {
		loc = time.Local
	}
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		loc:  loc,
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// AfterFunc arms a one-shot cron entry that runs f once d has elapsed.
func (s *SchedulerService) AfterFunc(d time.Duration, f func()) Timer {
	t := &cronTimer{cron: s.cron}
	if d <= 0 {
		go t.fire(f)
		return t
	}

	at := time.Now().In(s.loc).Add(d)
	t.mu.Lock()
	t.id = s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() { t.fire(f) }))
	t.scheduled = true
	t.mu.Unlock()
	return t
}

// onceSchedule fires exactly once at a fixed instant.
type onceSchedule struct {
	at time.Time
}

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	// Zero time means "never again" to cron.
	return time.Time{}
}

type cronTimer struct {
	cron      *cron.Cron
	mu        sync.Mutex
	id        cron.EntryID
	scheduled bool
	done      bool
}

func (t *cronTimer) fire(f func()) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()

	t.remove()
	f()
}

func (t *cronTimer) Stop() bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	t.mu.Unlock()

	t.remove()
	return true
}

func (t *cronTimer) remove() {
	t.mu.Lock()
	id, scheduled := t.id, t.scheduled
	t.scheduled = false
	t.mu.Unlock()
	if scheduled {
		t.cron.Remove(id)
	}
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
