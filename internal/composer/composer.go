// Package composer turns a shopper's name, the products they looked at and an
// urgency tier into a short reminder text suitable for SMS.
package composer

import (
	"context"
	"fmt"
	"strings"
)

// Urgency is the coarse classification driving the tone of the reminder.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Request carries everything needed to compose one reminder.
type Request struct {
	Name     string
	Products string
	Urgency  Urgency
	Link     string
}

// Composer produces the reminder text. Implementations may call an external
// generator; failures surface as *GenerationError so the scanner can skip the
// user without aborting the tick.
type Composer interface {
	Compose(ctx context.Context, req Request) (string, error)
}

// ValidationError reports bad composer input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GenerationError reports an upstream text-generation failure.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("text generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if strings.TrimSpace(r.Products) == "" {
		return &ValidationError{Field: "products", Message: "must not be empty"}
	}
	if !r.Urgency.Valid() {
		return &ValidationError{Field: "urgency", Message: fmt.Sprintf("must be one of low, medium, high; got %q", r.Urgency)}
	}
	return nil
}

// maxMessageLen is the single-segment SMS limit enforced on all output.
const maxMessageLen = 160

// normalize strips surrounding quote characters the generator tends to add
// and bounds the text to maxMessageLen, truncating to 157 characters plus an
// ellipsis when the generator runs long.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	for len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
			continue
		}
		break
	}

	runes := []rune(text)
	if len(runes) > maxMessageLen {
		return string(runes[:maxMessageLen-3]) + "..."
	}
	return text
}
