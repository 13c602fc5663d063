package procs

import "testing"

func TestIsEssentialPID1(t *testing.T) {
	if !IsEssential(ProcessInfo{PID: 1, Comm: "whatever"}) {
		t.Fatal("pid 1 must be essential")
	}
}

func TestIsEssentialKernelThreadBracket(t *testing.T) {
	if !IsEssential(ProcessInfo{PID: 99, PPID: 1, Comm: "[kworker/0:1]"}) {
		t.Fatal("bracketed comm must be essential")
	}
}

func TestIsEssentialNameTable(t *testing.T) {
	cases := []string{"systemd", "systemd-udevd", "kworker/u8:3", "dhcpcd", "multipathd"}
	for _, comm := range cases {
		if !IsEssential(ProcessInfo{PID: 1234, PPID: 1, Comm: comm}) {
			t.Fatalf("%q should be essential", comm)
		}
	}
}

func TestIsEssentialFalseForOrdinaryProcess(t *testing.T) {
	if IsEssential(ProcessInfo{PID: 1234, PPID: 1, Comm: "myapp"}) {
		t.Fatal("ordinary process should not be essential")
	}
}

func TestIsEssentialKernelThreadByPPID(t *testing.T) {
	// A kernel thread whose comm isn't bracketed and isn't in the name
	// table is still essential if its ppid is 0 or 2, per spec.md §3's
	// ppid-OR-bracket kernel-thread predicate.
	cases := []ProcessInfo{
		{PID: 50, PPID: 2, Comm: "unlisted-kthread"},
		{PID: 51, PPID: 0, Comm: "unlisted-kthread"},
	}
	for _, p := range cases {
		if !IsEssential(p) {
			t.Fatalf("process with ppid %d should be essential", p.PPID)
		}
		if !isKernelThread(p) {
			t.Fatalf("process with ppid %d should be a kernel thread", p.PPID)
		}
	}
}

func TestIsEssentialMonotoneUnderPrefix(t *testing.T) {
	// If a name is essential, any comm sharing it as a prefix must also be
	// essential (spec.md §8's monotone-under-prefix property).
	base := ProcessInfo{PID: 5, PPID: 1, Comm: "kworker"}
	extended := ProcessInfo{PID: 6, PPID: 1, Comm: "kworker/extra-suffix"}
	if !IsEssential(base) || !IsEssential(extended) {
		t.Fatal("kworker and its prefix-extended form should both be essential")
	}
}

func TestScanSelf(t *testing.T) {
	procsList, err := Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(procsList) == 0 {
		t.Fatal("expected at least one process (self) in scan")
	}
}

func TestExistsForPID1(t *testing.T) {
	if !Exists(1) {
		t.Fatal("pid 1 should exist on any running Linux system")
	}
}
