package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matst80/tcp2np/internal/obs"
)

const keyPrefix = "tcp2np:status:"

// redisStateStore keeps the authoritative snapshot in memory and mirrors it
// into the hash tcp2np:status:<instance>. Writes happen on a background
// goroutine so a slow or absent Redis never stalls the relay. The hash
// expires unless refreshed and is deleted on Close.
type redisStateStore struct {
	*memoryStore

	client     *redis.Client
	instanceID string
	key        string

	heartbeatInterval time.Duration
	keyTTL            time.Duration

	changed chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func newRedisStateStore(addr, password string, db int, instanceID string) (*redisStateStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	r := &redisStateStore{
		memoryStore:       newMemoryStore(),
		client:            rdb,
		instanceID:        instanceID,
		key:               keyPrefix + instanceID,
		heartbeatInterval: 10 * time.Second,
		keyTTL:            30 * time.Second,
		changed:           make(chan struct{}, 1),
		done:              make(chan struct{}),
	}
	r.memoryStore.onChange = r.notify

	runCtx, runCancel := context.WithCancel(context.Background())
	r.cancel = runCancel
	go r.run(runCtx)
	return r, nil
}

var _ StateStore = (*redisStateStore)(nil)

// notify coalesces change signals; the publisher always writes the latest
// snapshot.
func (r *redisStateStore) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *redisStateStore) run(ctx context.Context) {
	defer close(r.done)
	t := time.NewTicker(r.heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.changed:
		case <-t.C:
		}
		if err := r.publish(ctx); err != nil && ctx.Err() == nil {
			obs.Error("redis.publish", obs.Fields{"err": err.Error(), "key": r.key})
			obs.ErrorsTotal.WithLabelValues("redis_publish").Inc()
		}
	}
}

func (r *redisStateStore) publish(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	fields, err := snapshotFields(r.instanceID, r.Stats())
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key, fields)
	pipe.Expire(ctx, r.key, r.keyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Close stops publishing and removes the status hash.
func (r *redisStateStore) Close() error {
	r.cancel()
	<-r.done
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		obs.Error("redis.remove_status", obs.Fields{"err": err.Error(), "key": r.key})
	}
	return r.client.Close()
}

// snapshotFields flattens st into the hash layout stored in Redis.
func snapshotFields(instanceID string, st Stats) (map[string]any, error) {
	session := ""
	if st.Session != nil {
		b, err := json.Marshal(st.Session)
		if err != nil {
			return nil, fmt.Errorf("marshal session: %w", err)
		}
		session = string(b)
	}
	return map[string]any{
		"instance":        instanceID,
		"phase":           st.Phase,
		"ready":           strconv.FormatBool(st.Ready),
		"closing":         strconv.FormatBool(st.Closing),
		"session":         session,
		"total_sessions":  st.TotalSessions,
		"relayed":         st.Relayed,
		"pipe_failures":   st.PipeFailures,
		"stream_errors":   st.StreamErrors,
		"bytes_to_socket": st.BytesToSocket,
		"bytes_to_pipe":   st.BytesToPipe,
		"last_error":      st.LastError,
		"updated":         st.Now,
	}, nil
}
