//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// checkVolumeExists is a no-op on Unix; ghost-mount detection happens in
// validateMountPoint instead.
func checkVolumeExists(path string) error {
	return nil
}

// validateMountPoint checks if the path resides on the root filesystem.
// If it does, it assumes the drive is NOT mounted (Ghost detection).
func validateMountPoint(path string) error {
	// 1. Allow the home directory (backups to local user folders are usually
	// intentional) and the system temp directory.
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" && strings.HasPrefix(path, homeDir) {
		return nil
	}
	if strings.HasPrefix(path, os.TempDir()) {
		return nil
	}

	// 2. Get the Device ID of the Root partition
	rootInfo, err := os.Stat("/")
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	rootStat, ok := rootInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	// 3. Get the Device ID of the Target path
	pathInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat target path: %w", err)
	}
	pathStat, ok := pathInfo.Sys().(*unix.Stat_t)
	if !ok {
		return fmt.Errorf("unsupported platform for unix.Stat_t")
	}

	// 4. Compare Device IDs.
	// If pathDev == rootDev, we are writing to the system partition (Ghost).
	// Exception: The user specifically targeted "/" (unlikely, but valid),
	// or a path directly under root like /srv or /data which is a deliberate
	// local target rather than a mount point that failed to attach.
	if pathStat.Dev == rootStat.Dev && looksLikeMountPoint(path) {
		return fmt.Errorf("path '%s' is on the root filesystem (system disk). "+
			"Ensure your external drive is mounted", path)
	}

	return nil
}

// looksLikeMountPoint reports whether a path is under one of the conventional
// removable or network mount roots.
func looksLikeMountPoint(path string) bool {
	for _, root := range []string{"/mnt/", "/media/", "/Volumes/"} {
		if strings.HasPrefix(path, root) {
			return true
		}
	}
	return false
}
