// Package sysinfo exposes the host readings the chunk planner and the run
// report depend on: available memory, process resident size, core counts,
// file sizes and wall-clock time. Each reading sits behind a small
// interface so tests can substitute fixed values.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemoryProbe reports memory readings in bytes.
type MemoryProbe interface {
	AvailableSystemMemory(ctx context.Context) (int64, error)
	ProcessResident(ctx context.Context) (int64, error)
}

// FileSystemProbe reports on local paths.
type FileSystemProbe interface {
	FileSize(path string) (int64, error)
	Available(path string) bool
}

// CoreCounter reports how many physical cores the host has.
type CoreCounter interface {
	PhysicalCores(ctx context.Context) int
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Host is the gopsutil-backed implementation of every probe.
type Host struct {
	proc *process.Process
}

// NewHost returns a Host bound to the current process.
func NewHost() *Host {
	proc, _ := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	return &Host{proc: proc}
}

// AvailableSystemMemory returns the memory available for new allocations
// without swapping.
func (h *Host) AvailableSystemMemory(ctx context.Context) (int64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read virtual memory: %w", err)
	}
	return int64(vm.Available), nil //nolint:gosec // host memory fits in int64
}

// ProcessResident returns the resident set size of the current process.
func (h *Host) ProcessResident(ctx context.Context) (int64, error) {
	if h.proc == nil {
		return 0, errors.New("process handle unavailable")
	}
	info, err := h.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read process memory: %w", err)
	}
	return int64(info.RSS), nil //nolint:gosec // RSS fits in int64
}

// PhysicalCores returns the physical core count, falling back to the
// logical CPU count when the host does not expose topology.
func (h *Host) PhysicalCores(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, false)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// FileSize returns the size of the file at path.
func (h *Host) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// Available reports whether path names a readable regular file.
func (h *Host) Available(path string) bool {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && info.Mode().IsRegular()
}

// Now implements Clock.
func (h *Host) Now() time.Time {
	return time.Now()
}

// Static is a fixed-reading probe for tests and dry runs.
type Static struct {
	Memory   int64
	Resident int64
	Cores    int
	Time     time.Time
	Err      error
}

// AvailableSystemMemory implements MemoryProbe.
func (s *Static) AvailableSystemMemory(context.Context) (int64, error) {
	return s.Memory, s.Err
}

// ProcessResident implements MemoryProbe.
func (s *Static) ProcessResident(context.Context) (int64, error) {
	return s.Resident, s.Err
}

// PhysicalCores implements CoreCounter.
func (s *Static) PhysicalCores(context.Context) int {
	if s.Cores <= 0 {
		return 1
	}
	return s.Cores
}

// Now implements Clock.
func (s *Static) Now() time.Time {
	return s.Time
}
