package state

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/matst80/tcp2np/internal/obs"
)

// Options selects the state backend. An empty RedisAddr keeps state in memory.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InstanceID    string // defaults to <hostname>-<random>
}

// New creates either an in-memory or Redis-backed state store based on opts.
func New(opts Options) (StateStore, error) {
	if opts.RedisAddr == "" {
		obs.Info("state.backend", obs.Fields{"type": "in-memory"})
		return newMemoryStore(), nil
	}
	id := opts.InstanceID
	if id == "" {
		id = defaultInstanceID()
	}
	obs.Info("state.backend", obs.Fields{"type": "redis", "addr": opts.RedisAddr, "instance": id})
	return newRedisStateStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, id)
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "tcp2np"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
