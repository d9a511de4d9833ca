//go:build unix || linux || darwin || freebsd || openbsd || netbsd

package posixbackend

import (
	"os"

	"golang.org/x/sys/unix"
)

func osFlock(f *os.File, exclusive bool) error {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	return unix.Flock(int(f.Fd()), how)
}

func osFunlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
