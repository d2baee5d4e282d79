package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Driver sends a reminder over one delivery channel and returns the
// provider's receipt identifier.
type Driver interface {
	Send(ctx context.Context, to, body string) (string, error)
	Channel() Channel
}

// ErrNoDestination is returned when the caller passes an empty destination
// address. Absence of an address is a caller precondition failure, not an
// upstream one.
var ErrNoDestination = errors.New("destination address is required")

// DryRunDriver logs the intended send instead of delivering. Used when the
// service runs with DRY_RUN enabled.
type DryRunDriver struct {
	Kind Channel
}

func NewDryRunDriver(kind Channel) *DryRunDriver {
	return &DryRunDriver{Kind: kind}
}

func (d *DryRunDriver) Channel() Channel {
	return d.Kind
}

func (d *DryRunDriver) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", &DeliveryError{Channel: d.Kind, Err: ErrNoDestination}
	}
	log.Printf("[DRY RUN] Would send %s to %s: %s", d.Kind, to, body)
	return "dry-run", nil
}

// DriverRegistry holds the available delivery drivers keyed by channel.
type DriverRegistry struct {
	drivers map[Channel]Driver
}

func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		drivers: make(map[Channel]Driver),
	}
}

func (r *DriverRegistry) Register(driver Driver) {
	r.drivers[driver.Channel()] = driver
}

func (r *DriverRegistry) Get(channel Channel) (Driver, error) {
	driver, ok := r.drivers[channel]
	if !ok {
		return nil, fmt.Errorf("no driver registered for channel: %s", channel)
	}
	return driver, nil
}
