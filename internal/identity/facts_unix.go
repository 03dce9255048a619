//go:build unix

package identity

import "golang.org/x/sys/unix"

func unameFacts() (nodename, machine string) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", ""
	}
	return unix.ByteSliceToString(u.Nodename[:]), unix.ByteSliceToString(u.Machine[:])
}
