package procs

import (
	"os"
	"time"

	"github.com/ananthb/xenomorph/internal/sysflags"
	"github.com/ananthb/xenomorph/internal/xlog"
)

var log = xlog.Scope("procs")

const pollInterval = 100 * time.Millisecond

// TerminateOptions controls the terminator's escalation behavior, per
// spec.md §4.5.
type TerminateOptions struct {
	GracefulTimeout time.Duration
	ForcefulTimeout time.Duration
	SkipEssential   bool
	ExcludePIDs     map[int]bool
}

// DefaultTerminateOptions matches spec.md §4.5's defaults (graceful 5000ms,
// forceful 2000ms, skip_essential true).
func DefaultTerminateOptions() TerminateOptions {
	return TerminateOptions{
		GracefulTimeout: 5000 * time.Millisecond,
		ForcefulTimeout: 2000 * time.Millisecond,
		SkipEssential:   true,
		ExcludePIDs:     map[int]bool{},
	}
}

// TerminateResult is the terminator's report.
type TerminateResult struct {
	TerminatedCount int
	KilledCount     int
	StubbornPIDs    []int
}

// Terminate implements spec.md §4.5's SIGTERM-then-SIGKILL escalation,
// grounded on lib/ingress/daemon.go's CaddyDaemon.Stop and
// lib/instances/delete.go's killHypervisor polling idiom.
func Terminate(opts TerminateOptions) (*TerminateResult, error) {
	all, err := Scan()
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	target := make(map[int]ProcessInfo)
	for _, p := range all {
		if p.PID == 1 || p.PID == self || p.PPID == self {
			continue
		}
		if opts.ExcludePIDs[p.PID] {
			continue
		}
		if isKernelThread(p) {
			continue
		}
		if opts.SkipEssential && IsEssential(p) {
			continue
		}
		target[p.PID] = p
	}

	for pid := range target {
		if err := sysflags.Kill(pid, sysflags.SIGTERM); err != nil {
			log.Warn("sigterm failed", "pid", pid, "error", err)
		}
	}

	remaining := waitForExit(target, opts.GracefulTimeout)
	terminated := len(target) - len(remaining)

	killed := map[int]bool{}
	for pid := range remaining {
		if err := sysflags.Kill(pid, sysflags.SIGKILL); err != nil {
			log.Warn("sigkill failed", "pid", pid, "error", err)
			continue
		}
		killed[pid] = true
	}

	time.Sleep(opts.ForcefulTimeout)

	var stubborn []int
	for pid := range killed {
		if Exists(pid) {
			stubborn = append(stubborn, pid)
		}
	}

	return &TerminateResult{
		TerminatedCount: terminated + len(killed),
		KilledCount:     len(killed),
		StubbornPIDs:    stubborn,
	}, nil
}

func waitForExit(target map[int]ProcessInfo, timeout time.Duration) map[int]ProcessInfo {
	deadline := time.Now().Add(timeout)
	remaining := make(map[int]ProcessInfo, len(target))
	for pid, p := range target {
		remaining[pid] = p
	}

	for time.Now().Before(deadline) && len(remaining) > 0 {
		for pid := range remaining {
			if !Exists(pid) {
				delete(remaining, pid)
			}
		}
		if len(remaining) == 0 {
			break
		}
		time.Sleep(pollInterval)
	}
	return remaining
}

// isKernelThread implements spec.md §3's kernel-thread predicate: ppid is
// 0 (direct child of the scheduler) or 2 (kthreadd's children), or comm is
// bracketed the way /proc/<pid>/stat renders a kernel thread's name.
func isKernelThread(p ProcessInfo) bool {
	return p.PPID == 0 || p.PPID == 2 || (len(p.Comm) > 0 && p.Comm[0] == '[')
}
