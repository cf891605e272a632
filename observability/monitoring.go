// Package observability aggregates relay telemetry for logs and the debug
// endpoint.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the relay counters.
type Stats struct {
	ConnectionsOpened  uint64 `json:"connections_opened"`
	ConnectionsPruned  uint64 `json:"connections_pruned"`
	ActiveConnections  int64  `json:"active_connections"`
	Sessions           uint64 `json:"sessions_created"`
	MessagesRelayed    uint64 `json:"messages_relayed"`
	NotificationsSent  uint64 `json:"notifications_sent"`
	DroppedFrames      uint64 `json:"dropped_frames"`
	StoreFailures      uint64 `json:"store_failures"`
	AllocMemMb         uint64 `json:"alloc_mem_mb"`
	NumGC              uint32 `json:"num_gc"`
	CollectedAt        string `json:"collected_at"`
}

// MonitoringManager collects counters from the hot path with atomics only;
// the mutex guards the cached snapshot.
type MonitoringManager struct {
	log *slog.Logger
	mu  sync.RWMutex

	latest Stats

	connectionsOpened uint64
	connectionsPruned uint64
	activeConnections int64
	sessions          uint64
	messagesRelayed   uint64
	notificationsSent uint64
	droppedFrames     uint64
	storeFailures     uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrConnectionsOpened() {
	atomic.AddUint64(&mm.connectionsOpened, 1)
	atomic.AddInt64(&mm.activeConnections, 1)
}

// DecrConnections is called exactly once per connection teardown, whatever
// the cause; IncrConnectionsPruned only counts liveness and backlog evictions.
func (mm *MonitoringManager) DecrConnections() {
	atomic.AddInt64(&mm.activeConnections, -1)
}

func (mm *MonitoringManager) IncrConnectionsPruned() {
	atomic.AddUint64(&mm.connectionsPruned, 1)
}

func (mm *MonitoringManager) IncrSessions() {
	atomic.AddUint64(&mm.sessions, 1)
}

func (mm *MonitoringManager) IncrMessagesRelayed() {
	atomic.AddUint64(&mm.messagesRelayed, 1)
}

func (mm *MonitoringManager) IncrNotificationsSent() {
	atomic.AddUint64(&mm.notificationsSent, 1)
}

func (mm *MonitoringManager) IncrDroppedFrames() {
	atomic.AddUint64(&mm.droppedFrames, 1)
}

func (mm *MonitoringManager) IncrStoreFailures() {
	atomic.AddUint64(&mm.storeFailures, 1)
}

// Collect refreshes the cached snapshot. Called by the telemetry worker on
// its interval so readers never pay for ReadMemStats.
func (mm *MonitoringManager) Collect() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		ConnectionsOpened: atomic.LoadUint64(&mm.connectionsOpened),
		ConnectionsPruned: atomic.LoadUint64(&mm.connectionsPruned),
		ActiveConnections: atomic.LoadInt64(&mm.activeConnections),
		Sessions:          atomic.LoadUint64(&mm.sessions),
		MessagesRelayed:   atomic.LoadUint64(&mm.messagesRelayed),
		NotificationsSent: atomic.LoadUint64(&mm.notificationsSent),
		DroppedFrames:     atomic.LoadUint64(&mm.droppedFrames),
		StoreFailures:     atomic.LoadUint64(&mm.storeFailures),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		CollectedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	mm.mu.Lock()
	mm.latest = stats
	mm.mu.Unlock()
	return stats
}

// GetLatest returns the last collected snapshot without recomputing it.
func (mm *MonitoringManager) GetLatest() Stats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}
