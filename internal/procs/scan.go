// Package procs is the process subsystem (C5): /proc scanning, essential
// classification, and graceful-then-forceful termination.
package procs

import (
	"os"
	"strconv"
	"strings"
)

// ProcessInfo is a single scanned /proc entry.
type ProcessInfo struct {
	PID     int
	PPID    int
	Comm    string
	State   byte
	Cmdline string
	UID     int
	GID     int
}

// Scan enumerates numeric entries under /proc, tolerating a process
// disappearing mid-scan (silently skipped).
func Scan() ([]ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var out []ProcessInfo
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		info, ok := readProcess(pid)
		if !ok {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func readProcess(pid int) (ProcessInfo, bool) {
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return ProcessInfo{}, false
	}
	comm, ppid, state, ok := parseStat(string(stat))
	if !ok {
		return ProcessInfo{}, false
	}

	info := ProcessInfo{PID: pid, PPID: ppid, Comm: comm, State: state}

	if cmdline, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline"); err == nil {
		info.Cmdline = strings.ReplaceAll(strings.TrimRight(string(cmdline), "\x00"), "\x00", " ")
	}

	if status, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status"); err == nil {
		info.UID, info.GID = parseStatus(string(status))
	}

	return info, true
}

// parseStat extracts comm (between the first '(' and last ')'), state, and
// ppid from a /proc/<pid>/stat line.
func parseStat(line string) (comm string, ppid int, state byte, ok bool) {
	open := strings.IndexByte(line, '(')
	close := strings.LastIndexByte(line, ')')
	if open < 0 || close < 0 || close < open {
		return "", 0, 0, false
	}
	comm = line[open+1 : close]

	rest := strings.Fields(line[close+1:])
	if len(rest) < 2 {
		return "", 0, 0, false
	}
	state = rest[0][0]
	ppidVal, err := strconv.Atoi(rest[1])
	if err != nil {
		return "", 0, 0, false
	}
	return comm, ppidVal, state, true
}

// parseStatus reads the first field after the tab on the Uid: and Gid:
// lines of /proc/<pid>/status.
func parseStatus(status string) (uid, gid int) {
	for _, line := range strings.Split(status, "\n") {
		switch {
		case strings.HasPrefix(line, "Uid:"):
			uid = firstStatusField(line)
		case strings.HasPrefix(line, "Gid:"):
			gid = firstStatusField(line)
		}
	}
	return uid, gid
}

func firstStatusField(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return v
}

// Exists probes for a live process by checking that /proc/<pid> exists.
func Exists(pid int) bool {
	_, err := os.Stat("/proc/" + strconv.Itoa(pid))
	return err == nil
}
