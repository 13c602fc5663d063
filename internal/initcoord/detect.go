// Package initcoord is the init coordinator (C6): detects the host's init
// system and asks it to quiesce services before a pivot, advisory only —
// internal/procs's terminator is the authoritative stopper.
package initcoord

import (
	"os"
	"strings"

	"github.com/ananthb/xenomorph/internal/procs"
)

// InitSystem is a closed enum, never an interface (spec.md §9 forbids open
// inheritance here).
type InitSystem int

const (
	Unknown InitSystem = iota
	Systemd
	OpenRC
	Runit
	S6
	Upstart
	SysVInit
)

func (s InitSystem) String() string {
	switch s {
	case Systemd:
		return "systemd"
	case OpenRC:
		return "openrc"
	case Runit:
		return "runit"
	case S6:
		return "s6"
	case Upstart:
		return "upstart"
	case SysVInit:
		return "sysvinit"
	default:
		return "unknown"
	}
}

// Detection is the detector's report.
type Detection struct {
	System         InitSystem
	PID1Comm       string
	SystemdVersion string
}

// Detect applies spec.md §4.6's ordered filesystem probes, first match wins.
func Detect() (*Detection, error) {
	d := &Detection{System: Unknown}

	if all, err := procs.Scan(); err == nil {
		for _, p := range all {
			if p.PID == 1 {
				d.PID1Comm = p.Comm
				break
			}
		}
	}

	switch {
	case exists("/run/systemd/system"):
		d.System = Systemd
		d.SystemdVersion = systemdVersion()
	case exists("/run/openrc") || exists("/sbin/openrc-run"):
		d.System = OpenRC
	case exists("/run/runit.stopit") || exists("/var/run/runsvdir"):
		d.System = Runit
	case exists("/run/s6") || exists("/run/s6-rc"):
		d.System = S6
	case exists("/var/run/upstart"):
		d.System = Upstart
	case d.PID1Comm == "init":
		d.System = SysVInit
	default:
		d.System = Unknown
	}

	return d, nil
}

// SkipInContainer applies spec.md §4.6's skip heuristic.
func SkipInContainer() bool {
	if exists("/.dockerenv") {
		return true
	}
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	for _, substr := range []string{"docker", "lxc", "kubepods", "containerd"} {
		if strings.Contains(content, substr) {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
