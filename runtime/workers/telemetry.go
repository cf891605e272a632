package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
)

// TelemetryWorker refreshes the monitoring snapshot and logs relay health
// (counters plus process CPU, RSS and OS status) on a fixed interval.
type TelemetryWorker struct {
	log        *slog.Logger
	interval   time.Duration
	monitoring *observability.MonitoringManager
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration,
	monitoring *observability.MonitoringManager) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, monitoring: monitoring}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := w.monitoring.Collect()
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Relay health",
				"active_connections", stats.ActiveConnections,
				"messages_relayed", stats.MessagesRelayed,
				"notifications_sent", stats.NotificationsSent,
				"connections_pruned", stats.ConnectionsPruned,
				"store_failures", stats.StoreFailures,
				"rss_bytes", rss,
				"cpu_percent", cpu,
				"pid_status", status,
			)
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the relay process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
