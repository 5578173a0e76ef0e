// Package health collects a host health snapshot for the supervisor's
// health-inquiry handler. Each collector is independent: one failing
// probe zeroes its fields and lands in Errors instead of failing the
// snapshot.
package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Grades, worst to best.
const (
	GradePoor = "poor"
	GradeFair = "fair"
	GradeGood = "good"
)

// Snapshot is one point-in-time view of the host.
type Snapshot struct {
	CollectedAt time.Time `json:"collected_at"`

	MemoryUsedPercent float64 `json:"memory_used_percent"`
	MemoryTotalMB     uint64  `json:"memory_total_mb"`
	Load1             float64 `json:"load_1"`
	Load5             float64 `json:"load_5"`
	Load15            float64 `json:"load_15"`
	CPUCores          int     `json:"cpu_cores"`
	DiskUsedPercent   float64 `json:"disk_used_percent"`
	UptimeSeconds     uint64  `json:"uptime_seconds"`

	Grade  string   `json:"health_grade"`
	Errors []string `json:"errors,omitempty"`
}

// Collect polls the host. It never returns an error; partial data plus the
// Errors list is the contract.
func Collect() *Snapshot {
	s := &Snapshot{CollectedAt: time.Now().UTC()}

	if vm, err := mem.VirtualMemory(); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("memory: %v", err))
	} else {
		s.MemoryUsedPercent = vm.UsedPercent
		s.MemoryTotalMB = vm.Total / (1 << 20)
	}

	if avg, err := load.Avg(); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("load: %v", err))
	} else {
		s.Load1, s.Load5, s.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	if cores, err := cpu.Counts(true); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("cpu: %v", err))
	} else {
		s.CPUCores = cores
	}

	if du, err := disk.Usage("/"); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("disk: %v", err))
	} else {
		s.DiskUsedPercent = du.UsedPercent
	}

	if up, err := host.Uptime(); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("uptime: %v", err))
	} else {
		s.UptimeSeconds = up
	}

	s.Grade = grade(s)
	return s
}

// grade scores severity points: memory >90% is 2, >75% is 1; 1-minute load
// above 2x cores is 2, above 1x is 1; disk >95% is 2, >85% is 1.
// 3+ points is poor, 1+ is fair, else good.
func grade(s *Snapshot) string {
	points := 0
	switch {
	case s.MemoryUsedPercent > 90:
		points += 2
	case s.MemoryUsedPercent > 75:
		points++
	}
	if s.CPUCores > 0 {
		switch {
		case s.Load1 > 2*float64(s.CPUCores):
			points += 2
		case s.Load1 > float64(s.CPUCores):
			points++
		}
	}
	switch {
	case s.DiskUsedPercent > 95:
		points += 2
	case s.DiskUsedPercent > 85:
		points++
	}

	switch {
	case points >= 3:
		return GradePoor
	case points >= 1:
		return GradeFair
	default:
		return GradeGood
	}
}

// Summary renders the snapshot as a short plain-text block for LLM prompts
// and fallback responses.
func (s *Snapshot) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "memory: %.1f%% of %d MB used\n", s.MemoryUsedPercent, s.MemoryTotalMB)
	fmt.Fprintf(&b, "load: %.2f / %.2f / %.2f on %d cores\n", s.Load1, s.Load5, s.Load15, s.CPUCores)
	fmt.Fprintf(&b, "disk: %.1f%% used\n", s.DiskUsedPercent)
	fmt.Fprintf(&b, "uptime: %s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
	fmt.Fprintf(&b, "grade: %s", s.Grade)
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\ncollector errors: %s", strings.Join(s.Errors, "; "))
	}
	return b.String()
}
