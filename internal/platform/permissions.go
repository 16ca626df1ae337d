package platform

import (
	"os"
	"runtime"
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// OwnerWritable returns perm with the owner read and write bits set, so
// files unpacked from an archive can be replaced by a later update.
func OwnerWritable(perm os.FileMode) os.FileMode {
	return perm.Perm() | 0600
}
