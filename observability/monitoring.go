// Package observability aggregates runtime counters for the debug surface.
// Counters are atomic; Snapshot is safe to call from any goroutine.
package observability

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

type Monitoring struct {
	startedAt time.Time

	messagesPosted    atomic.Uint64
	deliveries        atomic.Uint64
	droppedDeliveries atomic.Uint64
	droppedEvents     atomic.Uint64
	censorHits        atomic.Uint64
	activeConnections atomic.Int64

	proc *process.Process
}

func NewMonitoring() *Monitoring {
	// Process handle errors are not fatal: the stats panel simply loses
	// the OS-level columns.
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Monitoring{startedAt: time.Now().UTC(), proc: proc}
}

func (m *Monitoring) IncrMessagesPosted()    { m.messagesPosted.Add(1) }
func (m *Monitoring) IncrDeliveries()        { m.deliveries.Add(1) }
func (m *Monitoring) IncrDroppedDeliveries() { m.droppedDeliveries.Add(1) }
func (m *Monitoring) IncrDroppedEvents()     { m.droppedEvents.Add(1) }

func (m *Monitoring) AddCensorHits(n int) {
	if n > 0 {
		m.censorHits.Add(uint64(n))
	}
}

func (m *Monitoring) ConnectionOpened() { m.activeConnections.Add(1) }

func (m *Monitoring) ConnectionClosed() { m.activeConnections.Add(-1) }

func (m *Monitoring) ActiveConnections() int64 { return m.activeConnections.Load() }

// Snapshot returns the current counters plus process stats, shaped for the
// debug server stats panel.
func (m *Monitoring) Snapshot() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := map[string]any{
		"Uptime":            time.Since(m.startedAt).Round(time.Second).String(),
		"MessagesPosted":    m.messagesPosted.Load(),
		"Deliveries":        m.deliveries.Load(),
		"DroppedDeliveries": m.droppedDeliveries.Load(),
		"DroppedEvents":     m.droppedEvents.Load(),
		"CensorHits":        m.censorHits.Load(),
		"ActiveConnections": m.activeConnections.Load(),
		"HeapAllocMb":       ms.Alloc / 1024 / 1024,
		"NumGC":             ms.NumGC,
		"GoroutineCount":    runtime.NumGoroutine(),
	}

	if m.proc != nil {
		if mem, err := m.proc.MemoryInfo(); err == nil {
			stats["RssMb"] = mem.RSS / 1024 / 1024
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats["CpuPercent"] = fmt.Sprintf("%.1f", cpu)
		}
	}
	return stats
}
