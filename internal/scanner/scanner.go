// Package scanner implements the abandoned-cart detection job: it groups
// recent view events by user, enforces the reminder cooldown, classifies
// urgency, composes a message and hands it to the delivery driver.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sapliy/cart-recovery/internal/composer"
	"github.com/sapliy/cart-recovery/internal/events"
	"github.com/sapliy/cart-recovery/internal/reminder"
	"github.com/sapliy/cart-recovery/internal/tracking"
	"github.com/sapliy/cart-recovery/pkg/observability"
)

// ViewSource provides the recent view events joined to their users.
type ViewSource interface {
	ViewsSince(ctx context.Context, since time.Time) ([]tracking.UserView, error)
}

// ReminderStore persists reminder messages and answers the cooldown query.
type ReminderStore interface {
	Create(ctx context.Context, m *reminder.Message) error
	RecentByUserAndChannel(ctx context.Context, userID string, channel reminder.Channel, since time.Time) ([]*reminder.Message, error)
}

// Config carries the tick parameters. Detection and cooldown windows are
// configured independently; by default both are 30 minutes.
type Config struct {
	DetectionWindow time.Duration
	CooldownWindow  time.Duration
	PacingDelay     time.Duration
	CheckoutBaseURL string
	DryRun          bool
}

// TickSummary reports what one tick did.
type TickSummary struct {
	StartedAt       time.Time `json:"started_at"`
	DurationMillis  int64     `json:"duration_ms"`
	UsersScanned    int       `json:"users_scanned"`
	SkippedCooldown int       `json:"skipped_cooldown"`
	SkippedError    int       `json:"skipped_error"`
	Processed       int       `json:"processed"`
	Recorded        int       `json:"recorded"`
}

// TickAbortedError means the initial view batch fetch failed and the whole
// tick was abandoned. The next tick is unaffected.
type TickAbortedError struct {
	Err error
}

func (e *TickAbortedError) Error() string {
	return fmt.Sprintf("tick aborted: %v", e.Err)
}

func (e *TickAbortedError) Unwrap() error {
	return e.Err
}

// ErrTickInProgress guards against overlapping ticks; the interval is assumed
// longer than the worst-case tick, but a manual run can collide with a timed
// one.
var ErrTickInProgress = errors.New("a tick is already in progress")

// Scanner is the abandoned-cart recovery job. All collaborators are injected
// at construction; none are ambient globals.
type Scanner struct {
	views      ViewSource
	reminders  ReminderStore
	composer   composer.Composer
	driver     reminder.Driver
	redis      *redis.Client
	publisher  events.Publisher
	logger     *observability.Logger
	cfg        Config
	now        func() time.Time
	inProgress atomic.Bool
}

func New(views ViewSource, reminders ReminderStore, comp composer.Composer, driver reminder.Driver, logger *observability.Logger, cfg Config) *Scanner {
	return &Scanner{
		views:     views,
		reminders: reminders,
		composer:  comp,
		driver:    driver,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithRedis enables the dedupe fast-path. Redis is optional; Postgres remains
// the authoritative cooldown signal.
func (s *Scanner) WithRedis(client *redis.Client) *Scanner {
	s.redis = client
	return s
}

// WithPublisher enables reminder.sent event emission.
func (s *Scanner) WithPublisher(pub events.Publisher) *Scanner {
	s.publisher = pub
	return s
}

// userGroup is one user's qualifying views within the detection window.
type userGroup struct {
	userID string
	views  []tracking.UserView
}

// RunOnce executes a single tick synchronously and returns its summary.
// Per-user failures are isolated; only the initial batch fetch is fatal to
// the tick.
func (s *Scanner) RunOnce(ctx context.Context) (*TickSummary, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer s.inProgress.Store(false)

	now := s.now().UTC()
	started := time.Now()
	summary := &TickSummary{StartedAt: now}

	cutoff := now.Add(-s.cfg.DetectionWindow)
	views, err := s.views.ViewsSince(ctx, cutoff)
	if err != nil {
		ticksTotal.WithLabelValues("aborted").Inc()
		s.logger.Error("tick aborted: failed to fetch view batch", "error", err)
		return nil, &TickAbortedError{Err: err}
	}

	groups := groupByUser(views)
	for i, group := range groups {
		summary.UsersScanned++
		s.processUser(ctx, now, group, summary)

		// Pacing between users keeps the upstream APIs from being burst.
		if s.cfg.PacingDelay > 0 && i < len(groups)-1 {
			if !s.pace(ctx) {
				s.logger.Warn("tick interrupted, remaining users roll over to the next tick", "error", ctx.Err())
				break
			}
		}
	}

	summary.DurationMillis = time.Since(started).Milliseconds()
	ticksTotal.WithLabelValues("completed").Inc()
	tickDuration.Observe(time.Since(started).Seconds())

	s.logger.Info("tick complete",
		"users_scanned", summary.UsersScanned,
		"skipped_cooldown", summary.SkippedCooldown,
		"skipped_error", summary.SkippedError,
		"processed", summary.Processed,
		"recorded", summary.Recorded,
	)
	return summary, nil
}

// pace sleeps for the inter-user delay; it returns false when the context is
// cancelled first.
func (s *Scanner) pace(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.PacingDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// processUser runs the per-user portion of the tick. Errors are
// logged and counted, never propagated.
func (s *Scanner) processUser(ctx context.Context, now time.Time, group userGroup, summary *TickSummary) {
	reminded, err := s.recentlyReminded(ctx, now, group.userID)
	if err != nil {
		s.logger.Error("cooldown check failed, skipping user", "user_id", group.userID, "error", err)
		usersSkipped.WithLabelValues("error").Inc()
		summary.SkippedError++
		return
	}
	if reminded {
		usersSkipped.WithLabelValues("cooldown").Inc()
		summary.SkippedCooldown++
		return
	}

	oldest := group.views[0].ViewedAt
	for _, v := range group.views[1:] {
		if v.ViewedAt.Before(oldest) {
			oldest = v.ViewedAt
		}
	}
	urgency := UrgencyForAge(now.Sub(oldest))

	productIDs, productNames := distinctProducts(group.views)
	link := buildCheckoutLink(s.cfg.CheckoutBaseURL, group.userID, productIDs)

	first := group.views[0]
	text, err := s.composer.Compose(ctx, composer.Request{
		Name:     recipientName(first.DisplayName, first.Email),
		Products: strings.Join(productNames, ", "),
		Urgency:  urgency,
		Link:     link,
	})
	if err != nil {
		s.logger.Error("message composition failed, skipping user", "user_id", group.userID, "error", err)
		usersSkipped.WithLabelValues("error").Inc()
		summary.SkippedError++
		return
	}

	// Delivery failure does not stop the reminder record: the attempt is
	// logged either way, and the row arms the cooldown for the next tick.
	status := reminder.StatusSent
	var deliveryErr string
	if s.cfg.DryRun {
		s.logger.Info("dry run: suppressing delivery",
			"user_id", group.userID, "to", first.Phone, "urgency", urgency, "text", text)
	} else {
		receipt, err := s.driver.Send(ctx, first.Phone, text)
		if err != nil {
			s.logger.Error("delivery failed, recording attempt anyway", "user_id", group.userID, "error", err)
			status = reminder.StatusFailed
			deliveryErr = err.Error()
		} else {
			s.logger.Info("reminder delivered", "user_id", group.userID, "receipt", receipt, "urgency", urgency)
		}
	}

	msg := &reminder.Message{
		UserID:  group.userID,
		Channel: s.driver.Channel(),
		Content: text,
		Status:  status,
		Error:   deliveryErr,
		SentAt:  now,
	}
	if err := s.reminders.Create(ctx, msg); err != nil {
		s.logger.Error("failed to record reminder", "user_id", group.userID, "error", err)
		summary.SkippedError++
		summary.Processed++
		return
	}

	remindersRecorded.WithLabelValues(string(status)).Inc()
	s.markReminded(ctx, group.userID)

	if err := events.Emit(ctx, s.publisher, events.EventReminderSent, events.ReminderSentData{
		ReminderID: msg.ID,
		UserID:     msg.UserID,
		Channel:    string(msg.Channel),
		Urgency:    string(urgency),
		Status:     string(status),
		SentAt:     msg.SentAt,
	}); err != nil {
		s.logger.Warn("failed to emit reminder.sent event", "error", err)
	}

	summary.Processed++
	summary.Recorded++
}

// recentlyReminded is the dedupe rule: any reminder for this user on the
// configured channel inside the cooldown window suppresses a new one. Redis
// is consulted first when available; errors there fall through to Postgres.
func (s *Scanner) recentlyReminded(ctx context.Context, now time.Time, userID string) (bool, error) {
	if s.redis != nil {
		exists, err := s.redis.Exists(ctx, dedupeKey(userID)).Result()
		if err != nil {
			s.logger.Warn("redis dedupe check failed, falling back to database", "error", err)
		} else if exists > 0 {
			return true, nil
		}
	}

	recent, err := s.reminders.RecentByUserAndChannel(ctx, userID, s.driver.Channel(), now.Add(-s.cfg.CooldownWindow))
	if err != nil {
		return false, err
	}
	return len(recent) > 0, nil
}

func (s *Scanner) markReminded(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, dedupeKey(userID), "1", s.cfg.CooldownWindow).Err(); err != nil {
		s.logger.Warn("failed to set redis dedupe key", "user_id", userID, "error", err)
	}
}

func dedupeKey(userID string) string {
	return "reminder:sent:" + userID
}

// groupByUser buckets views per user, preserving first-encounter order so
// tick output is deterministic.
func groupByUser(views []tracking.UserView) []userGroup {
	byUser := make(map[string]int)
	var groups []userGroup
	for _, v := range views {
		idx, ok := byUser[v.UserID]
		if !ok {
			idx = len(groups)
			byUser[v.UserID] = idx
			groups = append(groups, userGroup{userID: v.UserID})
		}
		groups[idx].views = append(groups[idx].views, v)
	}
	return groups
}

// distinctProducts returns the deduplicated product ids and names in the
// order they were first seen.
func distinctProducts(views []tracking.UserView) (ids, names []string) {
	seenID := make(map[string]bool)
	seenName := make(map[string]bool)
	for _, v := range views {
		if !seenID[v.ProductID] {
			seenID[v.ProductID] = true
			ids = append(ids, v.ProductID)
		}
		if !seenName[v.ProductName] {
			seenName[v.ProductName] = true
			names = append(names, v.ProductName)
		}
	}
	return ids, names
}

// buildCheckoutLink embeds the user and the distinct product ids so the
// storefront can rebuild the cart.
func buildCheckoutLink(baseURL, userID string, productIDs []string) string {
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("%s/checkout?user=%s&products=%s", base, userID, strings.Join(productIDs, ","))
}

// recipientName prefers the display name and falls back to the local part of
// the email address.
func recipientName(displayName, email string) string {
	if displayName != "" {
		return displayName
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
