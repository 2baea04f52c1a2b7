package server

import (
	"runtime"
)

// ConnectionStats returns a breakdown of current connections.
func (cm *ConnManager) ConnectionStats() map[string]any {
	cm.mu.RLock()
	descs := make([]*Descriptor, 0, len(cm.descriptors))
	handshake, playing := 0, 0
	for _, d := range cm.descriptors {
		descs = append(descs, d)
		switch d.State {
		case ConnHandshake:
			handshake++
		case ConnPlaying:
			playing++
		}
	}
	cm.mu.RUnlock()

	tcp, ws, bytesSent := 0, 0, 0
	for _, d := range descs {
		switch d.Transport {
		case TransportTCP:
			tcp++
		case TransportWebSocket:
			ws++
		}
		bytesSent += d.BytesSent()
	}

	return map[string]any{
		"total":      len(descs),
		"tcp":        tcp,
		"websocket":  ws,
		"handshake":  handshake,
		"playing":    playing,
		"bytes_sent": bytesSent,
	}
}

// MemoryStats returns Go runtime memory statistics.
func MemoryStats() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]any{
		"heap_alloc_bytes":  m.HeapAlloc,
		"heap_inuse_bytes":  m.HeapInuse,
		"heap_alloc_mb":     float64(m.HeapAlloc) / 1024 / 1024,
		"goroutines":        runtime.NumGoroutine(),
		"gc_cycles":         m.NumGC,
		"gc_pause_total_ns": m.PauseTotalNs,
	}
}
