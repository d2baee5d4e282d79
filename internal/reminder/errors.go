package reminder

import "fmt"

// DeliveryError reports a failed send attempt. The scanner logs it and still
// records the reminder; it never aborts a tick.
type DeliveryError struct {
	Channel Channel
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
