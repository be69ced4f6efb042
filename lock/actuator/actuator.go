// Package actuator defines the downstream "lock/unlock a physical entity"
// sink the lock controller calls after a successful unlock finish, and
// ships the one concrete implementation the spec names: Home Assistant.
package actuator

import "context"

// Actuator sends a lock/unlock command for a single entity to whatever
// downstream system actually controls it.
type Actuator interface {
	Actuate(ctx context.Context, haEntity string, unlocked bool) error
}
