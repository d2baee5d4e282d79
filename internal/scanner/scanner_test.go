package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sapliy/cart-recovery/internal/composer"
	"github.com/sapliy/cart-recovery/internal/reminder"
	"github.com/sapliy/cart-recovery/internal/tracking"
	"github.com/sapliy/cart-recovery/pkg/observability"
)

type fakeViewSource struct {
	views []tracking.UserView
	err   error
}

func (f *fakeViewSource) ViewsSince(ctx context.Context, since time.Time) ([]tracking.UserView, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []tracking.UserView
	for _, v := range f.views {
		if !v.ViewedAt.Before(since) {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeReminderStore struct {
	mu        sync.Mutex
	existing  []*reminder.Message
	created   []*reminder.Message
	createErr error
	recentErr error
}

func (f *fakeReminderStore) Create(ctx context.Context, m *reminder.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	m.ID = "rm_" + m.UserID
	f.mu.Lock()
	f.created = append(f.created, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeReminderStore) RecentByUserAndChannel(ctx context.Context, userID string, channel reminder.Channel, since time.Time) ([]*reminder.Message, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*reminder.Message
	for _, m := range append(append([]*reminder.Message{}, f.existing...), f.created...) {
		if m.UserID == userID && m.Channel == channel && !m.SentAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeReminderStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeComposer struct {
	failFor  map[string]bool // by name
	requests []composer.Request
}

func (f *fakeComposer) Compose(ctx context.Context, req composer.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.failFor[req.Name] {
		return "", &composer.GenerationError{Err: errors.New("upstream unavailable")}
	}
	return "Hey " + req.Name + ", come back for " + req.Products + ": " + req.Link, nil
}

type fakeDriver struct {
	sends   []string
	sendErr error
}

func (f *fakeDriver) Channel() reminder.Channel { return reminder.SMS }

func (f *fakeDriver) Send(ctx context.Context, to, body string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sends = append(f.sends, to)
	return "SM123", nil
}

func newTestScanner(views *fakeViewSource, store *fakeReminderStore, comp composer.Composer, driver reminder.Driver, now time.Time) *Scanner {
	s := New(views, store, comp, driver, observability.NewLogger("test"), Config{
		DetectionWindow: 30 * time.Minute,
		CooldownWindow:  30 * time.Minute,
		CheckoutBaseURL: "https://shop.example.com",
	})
	s.now = func() time.Time { return now }
	return s
}

func view(userID, email, phone, productID, productName string, at time.Time) tracking.UserView {
	return tracking.UserView{
		UserID:      userID,
		Email:       email,
		Phone:       phone,
		ProductID:   productID,
		ProductName: productName,
		ViewedAt:    at,
	}
}

func TestRunOnce_SingleUserTwoProducts(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0.Add(25 * time.Minute)

	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "a@x.com", "+15550001", "p1", "Widget", t0),
		view("u1", "a@x.com", "+15550001", "p2", "Gadget", t0.Add(2*time.Minute)),
	}}
	store := &fakeReminderStore{}
	comp := &fakeComposer{}
	driver := &fakeDriver{}

	s := newTestScanner(views, store, comp, driver, now)
	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if summary.UsersScanned != 1 || summary.Processed != 1 || summary.Recorded != 1 {
		t.Errorf("summary = %+v, want 1 scanned, 1 processed, 1 recorded", summary)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected exactly one reminder recorded, got %d", len(store.created))
	}

	msg := store.created[0]
	if msg.Channel != reminder.SMS {
		t.Errorf("channel = %q, want sms", msg.Channel)
	}
	if !strings.Contains(msg.Content, "Widget") || !strings.Contains(msg.Content, "Gadget") {
		t.Errorf("content %q does not reference both products", msg.Content)
	}
	if widget, gadget := strings.Index(msg.Content, "Widget"), strings.Index(msg.Content, "Gadget"); widget > gadget {
		t.Errorf("products not in encounter order in %q", msg.Content)
	}

	if len(comp.requests) != 1 {
		t.Fatalf("expected one compose call, got %d", len(comp.requests))
	}
	req := comp.requests[0]
	if req.Urgency != composer.UrgencyHigh {
		t.Errorf("urgency = %q, want high (oldest view is 25 minutes old)", req.Urgency)
	}
	if !strings.Contains(req.Link, "p1,p2") || !strings.Contains(req.Link, "user=u1") {
		t.Errorf("checkout link %q missing product ids or user", req.Link)
	}
	if req.Name != "a" {
		t.Errorf("name = %q, want email local part fallback %q", req.Name, "a")
	}

	if len(driver.sends) != 1 || driver.sends[0] != "+15550001" {
		t.Errorf("driver sends = %v, want one send to +15550001", driver.sends)
	}
}

func TestRunOnce_CooldownDedupe(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "a@x.com", "+15550001", "p1", "Widget", now.Add(-10*time.Minute)),
	}}

	t.Run("reminder 5 minutes ago suppresses", func(t *testing.T) {
		store := &fakeReminderStore{existing: []*reminder.Message{
			{UserID: "u1", Channel: reminder.SMS, SentAt: now.Add(-5 * time.Minute)},
		}}
		s := newTestScanner(views, store, &fakeComposer{}, &fakeDriver{}, now)

		summary, err := s.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce returned error: %v", err)
		}
		if summary.SkippedCooldown != 1 || summary.Recorded != 0 {
			t.Errorf("summary = %+v, want 1 skipped by cooldown, 0 recorded", summary)
		}
	})

	t.Run("reminder older than the window does not", func(t *testing.T) {
		store := &fakeReminderStore{existing: []*reminder.Message{
			{UserID: "u1", Channel: reminder.SMS, SentAt: now.Add(-31 * time.Minute)},
		}}
		s := newTestScanner(views, store, &fakeComposer{}, &fakeDriver{}, now)

		summary, err := s.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce returned error: %v", err)
		}
		if summary.SkippedCooldown != 0 || summary.Recorded != 1 {
			t.Errorf("summary = %+v, want 0 skipped by cooldown, 1 recorded", summary)
		}
	})

	t.Run("reminder on another channel does not", func(t *testing.T) {
		store := &fakeReminderStore{existing: []*reminder.Message{
			{UserID: "u1", Channel: reminder.Email, SentAt: now.Add(-5 * time.Minute)},
		}}
		s := newTestScanner(views, store, &fakeComposer{}, &fakeDriver{}, now)

		summary, err := s.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce returned error: %v", err)
		}
		if summary.Recorded != 1 {
			t.Errorf("summary = %+v, want 1 recorded", summary)
		}
	})
}

func TestRunOnce_ComposerFailureIsolated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	at := now.Add(-10 * time.Minute)

	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "one@x.com", "+15550001", "p1", "Widget", at),
		view("u2", "two@x.com", "+15550002", "p2", "Gadget", at),
		view("u3", "three@x.com", "+15550003", "p3", "Gizmo", at),
	}}
	store := &fakeReminderStore{}
	comp := &fakeComposer{failFor: map[string]bool{"two": true}}
	driver := &fakeDriver{}

	s := newTestScanner(views, store, comp, driver, now)
	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if summary.UsersScanned != 3 {
		t.Errorf("users scanned = %d, want 3", summary.UsersScanned)
	}
	if summary.SkippedError != 1 {
		t.Errorf("skipped by error = %d, want 1", summary.SkippedError)
	}
	if summary.Processed != 2 || summary.Recorded != 2 {
		t.Errorf("summary = %+v, want 2 processed and 2 recorded", summary)
	}
	for _, m := range store.created {
		if m.UserID == "u2" {
			t.Errorf("reminder recorded for the user whose composition failed")
		}
	}
}

func TestRunOnce_DeliveryFailureStillRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "a@x.com", "+15550001", "p1", "Widget", now.Add(-10*time.Minute)),
	}}
	store := &fakeReminderStore{}
	driver := &fakeDriver{sendErr: &reminder.DeliveryError{Channel: reminder.SMS, Err: errors.New("provider 500")}}

	s := newTestScanner(views, store, &fakeComposer{}, driver, now)
	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if summary.Recorded != 1 {
		t.Fatalf("recorded = %d, want 1 despite delivery failure", summary.Recorded)
	}
	msg := store.created[0]
	if msg.Status != reminder.StatusFailed {
		t.Errorf("status = %q, want failed", msg.Status)
	}
	if msg.Error == "" {
		t.Errorf("delivery error detail not captured on the record")
	}
}

func TestRunOnce_DryRunSkipsDelivery(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "a@x.com", "+15550001", "p1", "Widget", now.Add(-10*time.Minute)),
	}}
	store := &fakeReminderStore{}
	driver := &fakeDriver{sendErr: errors.New("driver must not be called in dry run")}

	s := newTestScanner(views, store, &fakeComposer{}, driver, now)
	s.cfg.DryRun = true

	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if summary.Recorded != 1 {
		t.Errorf("recorded = %d, want 1", summary.Recorded)
	}
	if store.created[0].Status != reminder.StatusSent {
		t.Errorf("dry-run record status = %q, want sent", store.created[0].Status)
	}
}

func TestRunOnce_BatchFetchFailureAbortsTick(t *testing.T) {
	views := &fakeViewSource{err: errors.New("connection refused")}
	s := newTestScanner(views, &fakeReminderStore{}, &fakeComposer{}, &fakeDriver{}, time.Now())

	_, err := s.RunOnce(context.Background())
	var aborted *TickAbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("expected *TickAbortedError, got %v", err)
	}
}

func TestRunOnce_OverlapGuard(t *testing.T) {
	s := newTestScanner(&fakeViewSource{}, &fakeReminderStore{}, &fakeComposer{}, &fakeDriver{}, time.Now())
	s.inProgress.Store(true)

	_, err := s.RunOnce(context.Background())
	if !errors.Is(err, ErrTickInProgress) {
		t.Fatalf("expected ErrTickInProgress, got %v", err)
	}
}

func TestRunOnce_RecordInsertFailureIsolated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	views := &fakeViewSource{views: []tracking.UserView{
		view("u1", "a@x.com", "+15550001", "p1", "Widget", now.Add(-10*time.Minute)),
	}}
	store := &fakeReminderStore{createErr: errors.New("disk full")}

	s := newTestScanner(views, store, &fakeComposer{}, &fakeDriver{}, now)
	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if summary.Recorded != 0 || summary.SkippedError != 1 {
		t.Errorf("summary = %+v, want 0 recorded and 1 skipped by error", summary)
	}
}

func TestGroupByUser_PreservesEncounterOrder(t *testing.T) {
	at := time.Now()
	groups := groupByUser([]tracking.UserView{
		view("u2", "b@x.com", "", "p1", "Widget", at),
		view("u1", "a@x.com", "", "p2", "Gadget", at),
		view("u2", "b@x.com", "", "p3", "Gizmo", at),
	})

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].userID != "u2" || groups[1].userID != "u1" {
		t.Errorf("group order = [%s %s], want [u2 u1]", groups[0].userID, groups[1].userID)
	}
	if len(groups[0].views) != 2 {
		t.Errorf("u2 group has %d views, want 2", len(groups[0].views))
	}
}

func TestDistinctProducts(t *testing.T) {
	at := time.Now()
	ids, names := distinctProducts([]tracking.UserView{
		view("u1", "", "", "p1", "Widget", at),
		view("u1", "", "", "p2", "Gadget", at),
		view("u1", "", "", "p1", "Widget", at),
	})

	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("ids = %v, want [p1 p2]", ids)
	}
	if len(names) != 2 || names[0] != "Widget" || names[1] != "Gadget" {
		t.Errorf("names = %v, want [Widget Gadget]", names)
	}
}
