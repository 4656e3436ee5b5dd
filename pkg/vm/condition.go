package vm

import "time"

// Condition is the suspended state of a waiting thread.
// Poll is called once per tick with the time elapsed since the previous tick.
type Condition interface {
	Poll(host Host, elapsed time.Duration) bool
}

// Countdown holds until Remaining has elapsed.
type Countdown struct {
	Remaining time.Duration
}

// Poll subtracts elapsed and reports whether the countdown ran out.
func (c *Countdown) Poll(_ Host, elapsed time.Duration) bool {
	c.Remaining -= elapsed
	return c.Remaining <= 0
}

// EnterVehicle holds once the player sits in Vehicle.
type EnterVehicle struct {
	Vehicle Handle
}

// Poll checks the player's current vehicle.
func (c *EnterVehicle) Poll(host Host, _ time.Duration) bool {
	h, ok := host.PlayerVehicle()
	return ok && h == c.Vehicle
}
