// Package sysmem reports system memory from /proc/meminfo and Go heap
// headroom from the runtime.
package sysmem

import (
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/prometheus/procfs"
)

type Probe struct {
	meminfo func() (procfs.Meminfo, error)
	heap    func() (sys, alloc uint64)
	logger  *slog.Logger

	warnOnce sync.Once
}

func NewProbe(logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Probe{heap: readHeap, logger: logger}

	fs, err := procfs.NewDefaultFS()
	if err != nil {
		p.meminfo = func() (procfs.Meminfo, error) { return procfs.Meminfo{}, err }
	} else {
		p.meminfo = fs.Meminfo
	}
	return p
}

// FreeSystemMemoryBytes prefers MemAvailable over MemFree. When /proc is
// unreadable it reports unlimited memory so the gate never blocks.
func (p *Probe) FreeSystemMemoryBytes() uint64 {
	info, ok := p.read()
	if !ok {
		return math.MaxUint64
	}
	if info.MemAvailable != nil {
		return kib(*info.MemAvailable)
	}
	if info.MemFree != nil {
		return kib(*info.MemFree)
	}
	return math.MaxUint64
}

func (p *Probe) UsedSystemMemoryBytes() uint64 {
	info, ok := p.read()
	if !ok || info.MemTotal == nil {
		sys, _ := p.heap()
		return sys
	}
	total := kib(*info.MemTotal)
	free := p.FreeSystemMemoryBytes()
	if free == math.MaxUint64 || free > total {
		return 0
	}
	return total - free
}

// ProcessHeapHeadroomBytes is heap memory obtained from the OS but not in use.
func (p *Probe) ProcessHeapHeadroomBytes() uint64 {
	sys, alloc := p.heap()
	if alloc >= sys {
		return 0
	}
	return sys - alloc
}

func (p *Probe) read() (procfs.Meminfo, bool) {
	info, err := p.meminfo()
	if err != nil {
		p.warnOnce.Do(func() {
			p.logger.Warn("meminfo_unavailable", "error", err)
		})
		return procfs.Meminfo{}, false
	}
	return info, true
}

func readHeap() (uint64, uint64) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapSys, stats.HeapAlloc
}

func kib(v uint64) uint64 {
	return v * 1024
}
