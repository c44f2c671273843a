package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	snapshotsApplied int64
	deltasApplied    int64
	reconnects       int64
	malformedFrames  int64
	framesDropped    int64
	ordersPlaced     int64
	orderFailures    int64
	warnCounts       sync.Map // map[string]*int64, keyed by component
	errorCounts      sync.Map // map[string]*int64
	channels         sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	v, _ := warnCounts.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func recordError(component string) {
	v, _ := errorCounts.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func IncrementSnapshotApplied() {
	atomic.AddInt64(&snapshotsApplied, 1)
}

func IncrementDeltaApplied() {
	atomic.AddInt64(&deltasApplied, 1)
}

func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func IncrementMalformed() {
	atomic.AddInt64(&malformedFrames, 1)
}

func IncrementFrameDropped() {
	atomic.AddInt64(&framesDropped, 1)
}

func IncrementOrdersPlaced(n int) {
	atomic.AddInt64(&ordersPlaced, int64(n))
}

func IncrementOrderFailures(n int) {
	atomic.AddInt64(&orderFailures, int64(n))
}

func RecordChannelMessage(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of connector and system
// statistics until the context is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	warnData := map[string]int64{}
	warnCounts.Range(func(k, v any) bool {
		warnData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	errorData := map[string]int64{}
	errorCounts.Range(func(k, v any) bool {
		errorData[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memPct := 0.0
	if memStats != nil {
		memPct = memStats.UsedPercent
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	log.WithComponent("report").WithFields(Fields{
		"snapshots_applied": atomic.LoadInt64(&snapshotsApplied),
		"deltas_applied":    atomic.LoadInt64(&deltasApplied),
		"reconnects":        atomic.LoadInt64(&reconnects),
		"malformed_frames":  atomic.LoadInt64(&malformedFrames),
		"frames_dropped":    atomic.LoadInt64(&framesDropped),
		"orders_placed":     atomic.LoadInt64(&ordersPlaced),
		"order_failures":    atomic.LoadInt64(&orderFailures),
		"warns":             warnData,
		"errors":            errorData,
		"channels":          channelData,
		"cpu_percent":       cpuPct,
		"mem_percent":       memPct,
		"net_bytes_sent":    bytesSent,
		"net_bytes_recv":    bytesRecv,
		"goroutines":        runtime.NumGoroutine(),
	}).Info("connector report")
}
