package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/observability"
)

// LivenessWorker is the only mechanism that reclaims resources for abruptly
// disconnected clients; the protocol has no leave frame.
//
// Each sweep works in two strikes: a connection that did not acknowledge the
// probe issued on the previous sweep is pruned from the registry and closed;
// surviving connections get a fresh probe. A dead connection is therefore
// gone within two intervals of its last acknowledgment.
type LivenessWorker struct {
	log        *slog.Logger
	registry   contract.IRegistry
	interval   time.Duration
	monitoring *observability.MonitoringManager
}

func NewLivenessWorker(log *slog.Logger, registry contract.IRegistry,
	interval time.Duration, monitoring *observability.MonitoringManager) *LivenessWorker {
	return &LivenessWorker{log: log, registry: registry, interval: interval, monitoring: monitoring}
}

func (w *LivenessWorker) Run(ctx context.Context) error {
	w.log.Info("Starting liveness monitor", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep probes every open connection once. Exported so tests can drive the
// monitor without waiting on the ticker.
func (w *LivenessWorker) Sweep() {
	for _, c := range w.registry.Conns() {
		if !c.Responsive() {
			w.prune(c, "probe unacknowledged")
			continue
		}
		if err := c.Probe(); err != nil {
			w.prune(c, "probe failed")
		}
	}
}

func (w *LivenessWorker) prune(c contract.Conn, reason string) {
	w.log.Warn("Pruning dead connection", "conn_id", c.ID(), "user_id", c.UserID(), "reason", reason)
	w.registry.Remove(c)
	c.Close()
	w.monitoring.IncrConnectionsPruned()
}
