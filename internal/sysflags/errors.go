package sysflags

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrorKind is the fixed set of error classifications every syscall wrapper
// in this package reduces its result to.
type ErrorKind int

const (
	Unexpected ErrorKind = iota
	PermissionDenied
	InvalidArgument
	OutOfMemory
	DeviceBusy
	NotADirectory
	IsADirectory
	NoSuchFileOrDirectory
	NotEmpty
	ReadOnlyFilesystem
	TooManySymlinks
	NameTooLong
	NoSpace
)

func (k ErrorKind) String() string {
	switch k {
	case PermissionDenied:
		return "PermissionDenied"
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfMemory:
		return "OutOfMemory"
	case DeviceBusy:
		return "DeviceBusy"
	case NotADirectory:
		return "NotADirectory"
	case IsADirectory:
		return "IsADirectory"
	case NoSuchFileOrDirectory:
		return "NoSuchFileOrDirectory"
	case NotEmpty:
		return "NotEmpty"
	case ReadOnlyFilesystem:
		return "ReadOnlyFilesystem"
	case TooManySymlinks:
		return "TooManySymlinks"
	case NameTooLong:
		return "NameTooLong"
	case NoSpace:
		return "NoSpace"
	default:
		return "Unexpected"
	}
}

// KindError wraps a syscall failure with its classified kind and the
// underlying errno, preserving errors.Is/As compatibility.
type KindError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error { return e.Err }

// errnoKind maps a raw error (typically unix.Errno, possibly wrapped in
// *os.PathError or *os.LinkError) to one of the twelve specific ErrorKind
// values, or Unexpected for anything else.
func errnoKind(err error) ErrorKind {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return Unexpected
	}
	switch errno {
	case unix.EPERM, unix.EACCES:
		return PermissionDenied
	case unix.EINVAL:
		return InvalidArgument
	case unix.ENOMEM:
		return OutOfMemory
	case unix.EBUSY:
		return DeviceBusy
	case unix.ENOTDIR:
		return NotADirectory
	case unix.EISDIR:
		return IsADirectory
	case unix.ENOENT:
		return NoSuchFileOrDirectory
	case unix.ENOTEMPTY:
		return NotEmpty
	case unix.EROFS:
		return ReadOnlyFilesystem
	case unix.ELOOP:
		return TooManySymlinks
	case unix.ENAMETOOLONG:
		return NameTooLong
	case unix.ENOSPC:
		return NoSpace
	default:
		return Unexpected
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Op: op, Kind: errnoKind(err), Err: err}
}
