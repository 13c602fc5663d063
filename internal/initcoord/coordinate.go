package initcoord

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ananthb/xenomorph/internal/xlog"
)

var log = xlog.Scope("initcoord")

// Target is the runlevel/target requested of whichever init system is
// detected (e.g. "multi-user", "rescue", "poweroff").
type Target string

const (
	TargetRescue    Target = "rescue"
	TargetEmergency Target = "emergency"
	TargetMultiUser Target = "multi-user"
	TargetPoweroff  Target = "poweroff"
	TargetReboot    Target = "reboot"
)

const (
	quiescencePollInterval = 500 * time.Millisecond
	defaultQuiescenceTimeout = 30 * time.Second
)

// ErrTimeout is returned by WaitQuiescence when pending jobs never reach
// zero within the timeout; non-fatal upstream.
var ErrTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "initcoord: quiescence wait timed out" }

// Coordinate dispatches the isolate-then-stop-all sequence to whichever
// init system d names. All vendor command failures are logged as warnings,
// never fatal — the coordinator is advisory.
func Coordinate(ctx context.Context, d *Detection, target Target) error {
	switch d.System {
	case Systemd:
		runAdvisory(ctx, "systemctl", "isolate", string(target)+".target")
		runAdvisory(ctx, "systemctl", "stop", "--all")
	case OpenRC:
		runAdvisory(ctx, "openrc", string(target))
		runAdvisory(ctx, "rc-service", "--all", "stop")
	case SysVInit:
		runAdvisory(ctx, "telinit", sysvRunlevel(target))
		runAdvisory(ctx, "killall5", "-15")
	default:
		log.Warn("no coordination strategy for init system, skipping", "system", d.System.String())
	}
	return nil
}

// WaitQuiescence polls for pending jobs to reach zero, bounded by timeout
// (default 30s per spec.md §4.6).
func WaitQuiescence(ctx context.Context, d *Detection, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultQuiescenceTimeout
	}
	if d.System != Systemd {
		return nil
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := pendingJobs(ctx)
		if err != nil {
			log.Warn("list-jobs failed", "error", err)
			return nil
		}
		if n == 0 {
			return nil
		}
		time.Sleep(quiescencePollInterval)
	}
	return ErrTimeout
}

func pendingJobs(ctx context.Context) (int, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "list-jobs", "--no-legend").Output()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}

func sysvRunlevel(target Target) string {
	switch target {
	case TargetPoweroff:
		return "0"
	case TargetReboot:
		return "6"
	case TargetRescue, TargetEmergency:
		return "1"
	default:
		return "3"
	}
}

// runAdvisory runs a vendor command, logging a non-zero exit as a warning
// without aborting the pipeline.
func runAdvisory(ctx context.Context, name string, args ...string) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		log.Warn("vendor command failed", "command", name, "args", strings.Join(args, " "), "error", err)
	}
}

// systemdVersion parses a version string from `systemctl --version`.
func systemdVersion() string {
	out, err := exec.Command("systemctl", "--version").Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) == 0 {
		return ""
	}
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return ""
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		return fields[len(fields)-1]
	}
	return fields[1]
}
