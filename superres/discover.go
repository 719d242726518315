package superres

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// OutputPrefix marks files written by this pipeline. Folder discovery
// skips them so outputs are never reprocessed.
const OutputPrefix = "SR_"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsCandidate reports whether name is an image that folder discovery
// should pick up.
func IsCandidate(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, OutputPrefix) {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// OutputName returns the output file name for a source path.
func OutputName(src string) string {
	return OutputPrefix + filepath.Base(src)
}

// DiscoverTargets resolves the batch inputs. An explicit file is taken as
// given when it exists; a folder contributes its direct children that pass
// IsCandidate. The result is de-duplicated and sorted.
//
// Missing or unreadable paths do not stop discovery; they are reported in
// the returned error alongside whatever targets were found.
func DiscoverTargets(filePath, folderPath string) ([]string, error) {
	if filePath == "" && folderPath == "" {
		return nil, errors.New("either a file or a folder is required")
	}

	seen := make(map[string]bool)
	var (
		targets  []string
		problems []error
	)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			targets = append(targets, p)
		}
	}

	if filePath != "" {
		info, err := os.Stat(filePath)
		switch {
		case err != nil:
			problems = append(problems, fmt.Errorf("file %s: %w", filePath, err))
		case info.IsDir():
			problems = append(problems, fmt.Errorf("file %s: is a directory", filePath))
		default:
			add(filePath)
		}
	}

	if folderPath != "" {
		entries, err := os.ReadDir(folderPath)
		if err != nil {
			problems = append(problems, fmt.Errorf("folder %s: %w", folderPath, err))
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsCandidate(entry.Name()) {
				continue
			}
			add(filepath.Join(folderPath, entry.Name()))
		}
	}

	sort.Strings(targets)
	return targets, errors.Join(problems...)
}
