// CLAUDE:SUMMARY Process liveness: periodic heartbeat with runtime metrics written to the KV store, read back with a staleness check.
// Package observability records process liveness for the diario service.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// HeartbeatKey is the KV key holding the latest heartbeat of each worker.
const HeartbeatKey = "heartbeat.json"

// Store is the KV boundary (see kvstore).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int     `json:"goroutines_count"`
	MemoryAllocMB   float64 `json:"memory_alloc_mb"`
	MemorySysMB     float64 `json:"memory_sys_mb"`
	GCCount         uint32  `json:"gc_count"`
}

// CollectRuntimeMetrics reads current Go runtime stats.
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:     float64(mem.Sys) / 1024 / 1024,
		GCCount:         mem.NumGC,
	}
}

// Heartbeat is one liveness probe.
type Heartbeat struct {
	WorkerName string    `json:"worker_name"`
	Hostname   string    `json:"hostname"`
	PID        int       `json:"pid"`
	Timestamp  time.Time `json:"timestamp"`
	RuntimeMetrics
}

// HeartbeatWriter periodically stores a Heartbeat under HeartbeatKey. Only
// the latest beat per worker is kept; history lives in the logs.
type HeartbeatWriter struct {
	kv         Store
	workerName string
	hostname   string
	workerPID  int
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewHeartbeatWriter creates a writer. logger may be nil.
func NewHeartbeatWriter(kv Store, workerName string, interval time.Duration, logger *slog.Logger) *HeartbeatWriter {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatWriter{
		kv:         kv,
		workerName: workerName,
		hostname:   hostname,
		workerPID:  os.Getpid(),
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Run writes one heartbeat immediately, then one per interval until ctx is
// cancelled.
func (hw *HeartbeatWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(hw.interval)
	defer ticker.Stop()
	for {
		if err := hw.WriteHeartbeat(ctx); err != nil {
			hw.logger.Error("heartbeat: write failed", "error", err, "worker", hw.workerName)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WriteHeartbeat stores a heartbeat with current runtime metrics.
func (hw *HeartbeatWriter) WriteHeartbeat(ctx context.Context) error {
	beats, err := loadBeats(ctx, hw.kv)
	if err != nil {
		return err
	}
	beats[hw.workerName] = Heartbeat{
		WorkerName:     hw.workerName,
		Hostname:       hw.hostname,
		PID:            hw.workerPID,
		Timestamp:      hw.now().UTC(),
		RuntimeMetrics: CollectRuntimeMetrics(),
	}
	data, err := json.Marshal(beats)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	if err := hw.kv.Set(ctx, HeartbeatKey, data); err != nil {
		return fmt.Errorf("save heartbeat: %w", err)
	}
	return nil
}

// HeartbeatStatus is the latest heartbeat of a worker with a staleness check.
type HeartbeatStatus struct {
	Heartbeat
	Alive      bool           `json:"alive"`
	StaleSince *time.Duration `json:"stale_since,omitempty"`
}

// LatestHeartbeat returns the latest heartbeat of workerName as seen at now.
// stalenessThreshold is typically 3x the heartbeat interval. Returns nil, nil
// when the worker never beat.
func LatestHeartbeat(ctx context.Context, kv Store, workerName string, stalenessThreshold time.Duration, now time.Time) (*HeartbeatStatus, error) {
	beats, err := loadBeats(ctx, kv)
	if err != nil {
		return nil, err
	}
	hb, ok := beats[workerName]
	if !ok {
		return nil, nil
	}
	hs := &HeartbeatStatus{Heartbeat: hb}
	if age := now.Sub(hb.Timestamp); age <= stalenessThreshold {
		hs.Alive = true
	} else {
		stale := age - stalenessThreshold
		hs.StaleSince = &stale
	}
	return hs, nil
}

func loadBeats(ctx context.Context, kv Store) (map[string]Heartbeat, error) {
	beats := map[string]Heartbeat{}
	data, ok, err := kv.Get(ctx, HeartbeatKey)
	if err != nil {
		return nil, fmt.Errorf("load heartbeat: %w", err)
	}
	if !ok {
		return beats, nil
	}
	if err := json.Unmarshal(data, &beats); err != nil {
		return nil, fmt.Errorf("decode heartbeat: %w", err)
	}
	return beats, nil
}
