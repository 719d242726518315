package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path  string
	Total uint64
	Free  uint64 // Available to unprivileged users
}

// DiskSpaceError reports too little free space for the outputs of a batch.
type DiskSpaceError struct {
	Path      string
	Required  uint64
	Available uint64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// GetDiskSpace returns space information for the filesystem containing
// path. A path that does not exist yet is resolved through its nearest
// existing parent.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if parent := filepath.Dir(path); parent != path {
				return GetDiskSpace(parent)
			}
		}
		return nil, fmt.Errorf("cannot access path %s: %w", path, err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}

	total, free, err := getDiskSpace(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk space for %s: %w", path, err)
	}
	return &DiskSpaceInfo{Path: path, Total: total, Free: free}, nil
}

// CheckDiskSpace returns a *DiskSpaceError unless path has at least
// requiredBytes free.
func CheckDiskSpace(path string, requiredBytes uint64) error {
	info, err := GetDiskSpace(path)
	if err != nil {
		return err
	}
	if info.Free < requiredBytes {
		return &DiskSpaceError{Path: path, Required: requiredBytes, Available: info.Free}
	}
	return nil
}

// OutputBytesPerImage bounds the size of one uncompressed RGBA output.
func OutputBytesPerImage(targetSize int) uint64 {
	return uint64(targetSize) * uint64(targetSize) * 4
}
