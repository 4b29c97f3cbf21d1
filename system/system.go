// Package system samples host resource usage for the health endpoint.
package system

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is host usage in percent.
type Snapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// GetCPUUsage returns the current CPU usage as a percentage
func GetCPUUsage() (float64, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("could not get CPU usage")
	}
	return percentages[0], nil
}

// GetMemoryUsage returns the current memory usage as a percentage
func GetMemoryUsage() (float64, error) {
	virtualMem, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return virtualMem.UsedPercent, nil
}

// GetDiskUsage returns the usage of the filesystem holding path.
func GetDiskUsage(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

// Sample takes a snapshot, measuring disk usage at path.
func Sample(path string) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.CPUPercent, err = GetCPUUsage(); err != nil {
		return snap, fmt.Errorf("cpu usage: %w", err)
	}
	if snap.MemoryPercent, err = GetMemoryUsage(); err != nil {
		return snap, fmt.Errorf("memory usage: %w", err)
	}
	if snap.DiskPercent, err = GetDiskUsage(path); err != nil {
		return snap, fmt.Errorf("disk usage: %w", err)
	}
	return snap, nil
}
