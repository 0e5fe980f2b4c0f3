package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one live push channel held by a user (a tab, a device...)
type Connection struct {
	ID             string
	UserID         string
	EstablishedAt  time.Time
	LastLivenessAt time.Time
	sink           Sink
}

// Stats is a read-only snapshot of the registry
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveUsers      int            `json:"active_users"`
	PerUser          map[string]int `json:"per_user"`
}

// Registry tracks every live connection, indexed by connection ID and by user.
// Both maps are guarded by mu; pushes to sinks always happen outside the lock
// so one slow user never blocks the others.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection            // connection ID -> connection
	byUser      map[string]map[string]*Connection // user ID -> connection ID -> connection

	logger *slog.Logger
	now    func() time.Time

	hookMu             sync.RWMutex
	onUserDisconnected func(userID string)
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLogger sets the registry logger
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock replaces time.Now, used by tests to age connections
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty connection registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[string]map[string]*Connection),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnUserDisconnected registers fn to be called once a user's last connection is gone
func (r *Registry) OnUserDisconnected(fn func(userID string)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.onUserDisconnected = fn
}

// AddConnection registers sink for userID and returns the new connection ID
func (r *Registry) AddConnection(userID string, sink Sink) string {
	now := r.now()
	conn := &Connection{
		ID:             uuid.NewString(),
		UserID:         userID,
		EstablishedAt:  now,
		LastLivenessAt: now,
		sink:           sink,
	}

	r.mu.Lock()
	r.connections[conn.ID] = conn
	userConns, ok := r.byUser[userID]
	if !ok {
		userConns = make(map[string]*Connection)
		r.byUser[userID] = userConns
	}
	userConns[conn.ID] = conn
	count := len(userConns)
	r.mu.Unlock()

	r.logger.Info("connection_added",
		"connection_id", conn.ID,
		"user_id", userID,
		"user_connections", count,
	)
	return conn.ID
}

// RemoveConnection unregisters a connection, a second call is a no-op
func (r *Registry) RemoveConnection(connectionID string) {
	r.evict([]string{connectionID}, "removed", nil)
}

// Touch refreshes the liveness timestamp of a connection
func (r *Registry) Touch(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.connections[connectionID]; ok {
		conn.LastLivenessAt = r.now()
	}
}

// NotifyUser pushes ev to every connection of userID.
// Sinks that fail are evicted without stopping delivery to the others.
// Returns true if at least one push succeeded.
func (r *Registry) NotifyUser(userID string, ev Event) bool {
	targets := r.snapshotUser(userID)
	if len(targets) == 0 {
		return false
	}
	return r.pushAll(targets, ev) > 0
}

// NotifyUsers fans ev out to several users, returns how many were reached
func (r *Registry) NotifyUsers(userIDs []string, ev Event) int {
	reached := 0
	for _, userID := range userIDs {
		if r.NotifyUser(userID, ev) {
			reached++
		}
	}
	return reached
}

// PingAll pushes a ping to every connection, failing sinks are evicted
func (r *Registry) PingAll() int {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}
	return r.pushAll(targets, pingEvent(r.now()))
}

// SweepStale evicts connections idle for longer than maxIdle, returns the evicted count
func (r *Registry) SweepStale(maxIdle time.Duration) int {
	now := r.now()

	r.mu.RLock()
	var stale []string
	for id, conn := range r.connections {
		if now.Sub(conn.LastLivenessAt) > maxIdle {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}
	// liveness may have been refreshed since the snapshot, re-check under the lock
	return r.evict(stale, "stale", func(conn *Connection) bool {
		return now.Sub(conn.LastLivenessAt) > maxIdle
	})
}

// Stats returns connection counts, it never mutates the registry
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perUser := make(map[string]int, len(r.byUser))
	for userID, conns := range r.byUser {
		perUser[userID] = len(conns)
	}
	return Stats{
		TotalConnections: len(r.connections),
		ActiveUsers:      len(r.byUser),
		PerUser:          perUser,
	}
}

// IsOnline reports whether userID holds at least one connection
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// StartHeartbeat runs PingAll then SweepStale every interval until ctx is done.
// Ping goes first so a connection that answers is refreshed before the stale check.
func (r *Registry) StartHeartbeat(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pinged := r.PingAll()
			evicted := r.SweepStale(maxIdle)
			if evicted > 0 {
				r.logger.Info("heartbeat_evicted_stale",
					"pinged", pinged,
					"evicted", evicted,
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// CloseAll closes and forgets every connection (shutdown)
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	r.evict(ids, "shutdown", nil)
}

func (r *Registry) snapshotUser(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	targets := make([]*Connection, 0, len(conns))
	for _, conn := range conns {
		targets = append(targets, conn)
	}
	return targets
}

// pushAll delivers ev to each target once, refreshes the ones that accepted
// and evicts the ones that failed
func (r *Registry) pushAll(targets []*Connection, ev Event) int {
	alive := make([]string, 0, len(targets))
	delivered := 0
	var dead []string

	for _, conn := range targets {
		if err := safePush(conn.sink, ev); err != nil {
			r.logger.Warn("push_failed",
				"connection_id", conn.ID,
				"user_id", conn.UserID,
				"event", ev.Name,
				"error", err.Error(),
			)
			dead = append(dead, conn.ID)
			continue
		}
		delivered++
		if reportsOwnLiveness(conn.sink) {
			continue
		}
		alive = append(alive, conn.ID)
	}

	if len(alive) > 0 {
		now := r.now()
		r.mu.Lock()
		for _, id := range alive {
			if conn, ok := r.connections[id]; ok {
				conn.LastLivenessAt = now
			}
		}
		r.mu.Unlock()
	}
	if len(dead) > 0 {
		r.evict(dead, "push_failed", nil)
	}
	return delivered
}

// evict removes the given connections, closes their sinks and fires the
// disconnect hook for users left without any connection.
// Sinks and hooks run after the lock is released. When cond is set only the
// connections it accepts are evicted.
func (r *Registry) evict(ids []string, reason string, cond func(*Connection) bool) int {
	var removed []*Connection
	var goneUsers []string

	r.mu.Lock()
	for _, id := range ids {
		conn, ok := r.connections[id]
		if !ok || (cond != nil && !cond(conn)) {
			continue
		}
		delete(r.connections, id)
		if userConns, ok := r.byUser[conn.UserID]; ok {
			delete(userConns, id)
			if len(userConns) == 0 {
				delete(r.byUser, conn.UserID)
				goneUsers = append(goneUsers, conn.UserID)
			}
		}
		removed = append(removed, conn)
	}
	r.mu.Unlock()

	for _, conn := range removed {
		conn.sink.Close()
		r.logger.Info("connection_removed",
			"connection_id", conn.ID,
			"user_id", conn.UserID,
			"reason", reason,
		)
	}

	if len(goneUsers) > 0 {
		r.hookMu.RLock()
		hook := r.onUserDisconnected
		r.hookMu.RUnlock()
		if hook != nil {
			for _, userID := range goneUsers {
				hook(userID)
			}
		}
	}
	return len(removed)
}

// LivenessReporter is implemented by sinks whose transport has its own
// liveness signal (websocket pongs). Accepted pushes don't refresh those,
// the transport calls Registry.Touch instead.
type LivenessReporter interface {
	ReportsLiveness() bool
}

func reportsOwnLiveness(sink Sink) bool {
	lr, ok := sink.(LivenessReporter)
	return ok && lr.ReportsLiveness()
}

// safePush turns a panicking sink into an ordinary push failure
func safePush(sink Sink, ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sink panicked: %v", rec)
		}
	}()
	return sink.Push(ev)
}
