// Package state records what the relay is doing for the health and status
// endpoints. The in-memory store is the default; the Redis store mirrors the
// same snapshot into an expiring hash so several bridges can be watched from
// one place.
package state

import "github.com/matst80/tcp2np/internal/relay"

// StateStore tracks relay lifecycle and readiness.
type StateStore interface {
	relay.Tracker

	SetClosing(closing bool)
	SetReady(ready bool)
	IsClosing() bool
	IsReady() bool
	Stats() Stats
	Close() error
}
