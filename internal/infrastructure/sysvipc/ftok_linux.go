//go:build linux && (amd64 || arm64)

package sysvipc

import "golang.org/x/sys/unix"

// Ftok derives an IPC key from an existing path and a project byte, the way
// ftok(3) does on glibc.
func Ftok(path string, proj byte) (int, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	key := uint32(st.Ino&0xffff) | uint32(st.Dev&0xff)<<16 | uint32(proj)<<24
	return int(int32(key)), nil
}
