package procs

import (
	"os"
	"strings"
)

// essentialNames is the fixed name table spec.md §4.5 pins, spanning
// kernel threads, init systems, device management, logging, networking,
// and storage daemons. A process is essential if its comm equals or
// starts with one of these.
var essentialNames = []string{
	// kernel threads
	"kthreadd", "ksoftirqd", "kworker", "migration", "watchdog",
	"kcompactd", "khugepaged", "kswapd", "kblockd",
	// init systems
	"systemd", "init", "openrc", "runit", "s6-svscan",
	// device management
	"udevd", "systemd-udevd", "eudev", "mdev",
	// logging
	"journald", "systemd-journald", "rsyslogd", "syslog-ng",
	// networking
	"dhclient", "dhcpcd", "NetworkManager", "wpa_supplicant",
	// storage
	"lvmetad", "multipathd", "iscsid",
}

// IsEssential reports whether p must never be terminated by this pipeline.
func IsEssential(p ProcessInfo) bool {
	if p.PID == 1 || p.PID == os.Getpid() {
		return true
	}
	if isKernelThread(p) {
		return true
	}
	for _, name := range essentialNames {
		if p.Comm == name || strings.HasPrefix(p.Comm, name) {
			return true
		}
	}
	return false
}
