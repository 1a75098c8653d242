// Package fsys provides FS implementations.
package fsys

import "os"

// OS answers path checks against the local filesystem.
type OS struct{}

// Exists reports whether the path exists, as a file or a directory.
func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsFile reports whether the path exists and is a regular file.
func (OS) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether the path exists and is a directory.
func (OS) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
