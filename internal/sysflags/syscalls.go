package sysflags

import "golang.org/x/sys/unix"

// Mount wraps mount(2). flags is the result of EncodeMount.
func Mount(source, target, fstype string, flags uintptr, data string) error {
	return wrap("mount", unix.Mount(source, target, fstype, uintptr(flags), data))
}

// Umount2 wraps umount2(2). flags is the result of EncodeUmount2.
func Umount2(target string, flags int) error {
	return wrap("umount2", unix.Unmount(target, flags))
}

// PivotRoot wraps pivot_root(2).
func PivotRoot(newRoot, putOld string) error {
	return wrap("pivot_root", unix.PivotRoot(newRoot, putOld))
}

// Chroot wraps chroot(2).
func Chroot(path string) error {
	return wrap("chroot", unix.Chroot(path))
}

// Chdir wraps chdir(2).
func Chdir(path string) error {
	return wrap("chdir", unix.Chdir(path))
}

// Unshare wraps unshare(2). flags is the result of EncodeUnshare.
func Unshare(flags uintptr) error {
	return wrap("unshare", unix.Unshare(int(flags)))
}

// Kill wraps kill(2).
func Kill(pid int, sig Signal) error {
	return wrap("kill", unix.Kill(pid, unix.Signal(sig)))
}
