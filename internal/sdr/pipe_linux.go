//go:build linux

package sdr

import (
	"os"

	"golang.org/x/sys/unix"
)

// pipeSize is requested for the stdout pipe, a full sweep of binary records
// fits without the tool blocking on a slow reader.
const pipeSize = 1 << 20

// growPipe enlarges the kernel buffer of the pipe. Failure is not an error,
// the default size still works.
func growPipe(f *os.File) {
	conn, err := f.SyscallConn()
	if err != nil {
		return
	}
	_ = conn.Control(func(fd uintptr) {
		_, _ = unix.FcntlInt(fd, unix.F_SETPIPE_SZ, pipeSize)
	})
}
