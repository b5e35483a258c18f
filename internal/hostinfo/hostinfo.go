// Package hostinfo collects a point-in-time host resource snapshot for the
// status endpoint, grounded on gopsutil as the agent process does.
package hostinfo

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a best-effort host resource reading. Fields are zero-valued
// when the underlying gopsutil call fails; collection never returns an
// error since a status endpoint should degrade, not fail.
type Snapshot struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemTotal     uint64  `json:"mem_total"`
	MemUsed      uint64  `json:"mem_used"`
	MemAvailable uint64  `json:"mem_available"`
	LoadAvg1     float64 `json:"load_avg_1"`
	LoadAvg5     float64 `json:"load_avg_5"`
	LoadAvg15    float64 `json:"load_avg_15"`
}

// Collect takes a best-effort snapshot of the current host.
func Collect() Snapshot {
	var snap Snapshot

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		snap.CPUPercent = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		snap.MemTotal = memInfo.Total
		snap.MemUsed = memInfo.Used
		snap.MemAvailable = memInfo.Available
	}

	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		snap.LoadAvg1 = loadAvg.Load1
		snap.LoadAvg5 = loadAvg.Load5
		snap.LoadAvg15 = loadAvg.Load15
	}

	return snap
}
