package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/sapliy/cart-recovery/internal/tracking"
)

func TestScheduler_RunsImmediatelyAtStartup(t *testing.T) {
	now := time.Now().UTC()
	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "a@x.com", "+15550001", "p1", "Widget", now.Add(-10*time.Minute)),
	}}
	store := &fakeReminderStore{}

	s := newTestScanner(views, store, &fakeComposer{}, &fakeDriver{}, now)
	sched := NewScheduler(s, time.Hour, s.logger)

	sched.Start(context.Background())
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.createdCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("startup tick never recorded a reminder")
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := newTestScanner(&fakeViewSource{}, &fakeReminderStore{}, &fakeComposer{}, &fakeDriver{}, time.Now())
	sched := NewScheduler(s, time.Hour, s.logger)

	sched.Start(context.Background())
	sched.Stop()
	sched.Stop()
}
