package scanner

import (
	"time"

	"github.com/sapliy/cart-recovery/internal/composer"
)

// UrgencyForAge classifies how long a cart has been sitting, measured from
// the oldest qualifying view. Boundaries are exclusive on the lower bound:
// exactly 20 minutes is medium, exactly 15 is low.
func UrgencyForAge(age time.Duration) composer.Urgency {
	minutes := age.Minutes()
	switch {
	case minutes > 20:
		return composer.UrgencyHigh
	case minutes > 15:
		return composer.UrgencyMedium
	default:
		return composer.UrgencyLow
	}
}
