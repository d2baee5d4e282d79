package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/sapliy/cart-recovery/internal/events"
	"github.com/sapliy/cart-recovery/pkg/jsonutil"
	"github.com/sapliy/cart-recovery/pkg/observability"
)

// Store is the persistence surface the handler needs.
type Store interface {
	FindOrCreateUserByEmail(ctx context.Context, email string) (*User, error)
	FindOrCreateProduct(ctx context.Context, productID, name string) (*Product, error)
	InsertViewEvent(ctx context.Context, v *ViewEvent) error
	RecentViewsByEmail(ctx context.Context, email string, since time.Time) ([]*ViewEvent, error)
}

// Handler serves the view ingestion endpoint.
type Handler struct {
	store     Store
	publisher events.Publisher
	logger    *observability.Logger
}

func NewHandler(store Store, publisher events.Publisher, logger *observability.Logger) *Handler {
	return &Handler{store: store, publisher: publisher, logger: logger}
}

type recordViewRequest struct {
	UserEmail   string `json:"user_email,omitempty"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type recordViewData struct {
	ViewID    string    `json:"view_id"`
	UserID    *string   `json:"user_id"`
	ProductID string    `json:"product_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordView validates and persists a single product-view event. User and
// product resolution failures are degraded to an anonymous or unlinked view;
// only the view insert itself is a hard error.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonutil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req recordViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.WriteError(w, http.StatusBadRequest, "invalid request body: expected JSON with string fields")
		return
	}

	viewedAt, vErr := validateViewRequest(&req)
	if vErr != nil {
		jsonutil.WriteError(w, http.StatusBadRequest, vErr.Error())
		return
	}

	ctx := r.Context()

	var userID *string
	if req.UserEmail != "" {
		user, err := h.store.FindOrCreateUserByEmail(ctx, req.UserEmail)
		if err != nil {
			h.logger.Warn("user resolution failed, recording anonymous view", "email", req.UserEmail, "error", err)
		} else {
			userID = &user.ID
		}
	}

	if _, err := h.store.FindOrCreateProduct(ctx, req.ProductID, req.ProductName); err != nil {
		h.logger.Warn("product resolution failed, proceeding with view insert", "product_id", req.ProductID, "error", err)
	}

	view := &ViewEvent{
		UserID:      userID,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		ViewedAt:    viewedAt,
	}
	if err := h.store.InsertViewEvent(ctx, view); err != nil {
		jsonutil.WriteErrorDetails(w, http.StatusInternalServerError, "failed to record view", err.Error())
		return
	}

	viewsRecorded.Inc()

	eventData := events.ViewRecordedData{
		ViewID:      view.ID,
		ProductID:   view.ProductID,
		ProductName: view.ProductName,
		ViewedAt:    view.ViewedAt,
	}
	if userID != nil {
		eventData.UserID = *userID
	}
	if err := events.Emit(ctx, h.publisher, events.EventViewRecorded, eventData); err != nil {
		h.logger.Warn("failed to emit view.recorded event", "error", err)
	}

	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": recordViewData{
			ViewID:    view.ID,
			UserID:    userID,
			ProductID: view.ProductID,
			Timestamp: view.ViewedAt,
		},
	})
}

// ListViews returns the views recorded for a user over the last day.
func (h *Handler) ListViews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonutil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	email := r.URL.Query().Get("user_email")
	if email == "" {
		jsonutil.WriteError(w, http.StatusBadRequest, "user_email query parameter is required")
		return
	}

	views, err := h.store.RecentViewsByEmail(r.Context(), email, time.Now().Add(-24*time.Hour))
	if err != nil {
		jsonutil.WriteErrorDetails(w, http.StatusInternalServerError, "failed to list views", err.Error())
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    views,
	})
}

// validateViewRequest enforces the ingestion contract and returns the
// validated or defaulted view timestamp.
func validateViewRequest(req *recordViewRequest) (time.Time, *ValidationError) {
	if strings.TrimSpace(req.ProductID) == "" {
		return time.Time{}, &ValidationError{Field: "product_id", Message: "is required and must be a non-empty string"}
	}
	if strings.TrimSpace(req.ProductName) == "" {
		return time.Time{}, &ValidationError{Field: "product_name", Message: "is required and must be a non-empty string"}
	}
	if req.UserEmail != "" {
		if _, err := mail.ParseAddress(req.UserEmail); err != nil {
			return time.Time{}, &ValidationError{Field: "user_email", Message: "is not a valid email address"}
		}
	}

	viewedAt := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return time.Time{}, &ValidationError{Field: "timestamp", Message: "is not a valid RFC 3339 timestamp"}
		}
		viewedAt = parsed.UTC()
	}
	return viewedAt, nil
}
