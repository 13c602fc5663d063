// Package sysflags is the syscall surface (C1): typed wrappers for mount,
// umount2, pivot_root, chroot, chdir, unshare, and kill, with the exact bit
// layouts spec.md §4.1 pins and a closed error-kind mapping.
//
// The bit values are pinned as named constants combined with bitwise OR,
// never a packed struct — the source this system replaces once shipped a
// packed-struct field-order bug that silently flipped MS_PRIVATE|MS_REC to
// the wrong bits and broke pivot_root.
package sysflags

// MountFlag is a single MS_* mount flag bit.
type MountFlag uint64

const (
	RDONLY      MountFlag = 1
	NOSUID      MountFlag = 2
	NODEV       MountFlag = 4
	NOEXEC      MountFlag = 8
	SYNCHRONOUS MountFlag = 16
	REMOUNT     MountFlag = 32
	MANDLOCK    MountFlag = 64
	DIRSYNC     MountFlag = 128
	NOSYMFOLLOW MountFlag = 256
	NOATIME     MountFlag = 1024
	NODIRATIME  MountFlag = 2048
	BIND        MountFlag = 4096
	MOVE        MountFlag = 8192
	REC         MountFlag = 16384
	SILENT      MountFlag = 32768
	POSIXACL    MountFlag = 1 << 16
	UNBINDABLE  MountFlag = 1 << 17
	PRIVATE     MountFlag = 1 << 18
	SLAVE       MountFlag = 1 << 19
	SHARED      MountFlag = 1 << 20
	RELATIME    MountFlag = 1 << 21
	KERNMOUNT   MountFlag = 1 << 22
	I_VERSION   MountFlag = 1 << 23
	STRICTATIME MountFlag = 1 << 24
	LAZYTIME    MountFlag = 1 << 25
)

// EncodeMount ORs together a set of MountFlag members into a single flags word.
func EncodeMount(flags ...MountFlag) uintptr {
	var v MountFlag
	for _, f := range flags {
		v |= f
	}
	return uintptr(v)
}

// UnshareFlag is a single CLONE_NEW* namespace flag bit.
type UnshareFlag int

const (
	NEWNS     UnshareFlag = 0x00020000
	NEWCGROUP UnshareFlag = 0x02000000
	NEWUTS    UnshareFlag = 0x04000000
	NEWIPC    UnshareFlag = 0x08000000
	NEWUSER   UnshareFlag = 0x10000000
	NEWPID    UnshareFlag = 0x20000000
	NEWNET    UnshareFlag = 0x40000000
)

// EncodeUnshare ORs together a set of UnshareFlag members.
func EncodeUnshare(flags ...UnshareFlag) uintptr {
	var v UnshareFlag
	for _, f := range flags {
		v |= f
	}
	return uintptr(v)
}

// Umount2Flag is a single umount2(2) flag bit.
type Umount2Flag int

const (
	FORCE   Umount2Flag = 1
	DETACH  Umount2Flag = 2
	EXPIRE  Umount2Flag = 4
	NOFOLLOW Umount2Flag = 8
)

// EncodeUmount2 ORs together a set of Umount2Flag members.
func EncodeUmount2(flags ...Umount2Flag) uintptr {
	var v Umount2Flag
	for _, f := range flags {
		v |= f
	}
	return uintptr(v)
}

// Signal is one of the signals the process subsystem sends.
type Signal int

const (
	SIGHUP  Signal = 1
	SIGINT  Signal = 2
	SIGQUIT Signal = 3
	SIGKILL Signal = 9
	SIGTERM Signal = 15
)
