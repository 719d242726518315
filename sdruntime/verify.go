package sdruntime

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	checksumMu sync.RWMutex

	// modelChecksums maps model filenames to their expected SHA256.
	// Models missing from the registry load without verification.
	// Entries come from RegisterModelChecksum (SR_MODEL_SHA256).
	modelChecksums = map[string]string{}
)

// VerifyModelChecksum checks modelPath against the registered checksum for
// its base name.
//
// Returns nil on match or when no checksum is registered, ErrModelNotFound
// when the file is missing and ErrModelCorrupted on mismatch.
func VerifyModelChecksum(modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return fmt.Errorf("failed to access model file: %w", err)
	}

	expected, ok := GetExpectedChecksum(filepath.Base(modelPath))
	if !ok {
		return nil
	}

	actual, err := CalculateChecksum(modelPath)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrModelCorrupted, expected, actual)
	}

	return nil
}

// CalculateChecksum streams filePath through SHA256 and returns the
// lowercase hex digest.
func CalculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, filePath)
		}
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// GetExpectedChecksum returns the registered checksum for a model filename.
func GetExpectedChecksum(modelName string) (string, bool) {
	checksumMu.RLock()
	defer checksumMu.RUnlock()
	checksum, ok := modelChecksums[modelName]
	return checksum, ok
}

// RegisterModelChecksum adds or replaces a model checksum.
func RegisterModelChecksum(modelName, checksum string) {
	checksumMu.Lock()
	defer checksumMu.Unlock()
	modelChecksums[modelName] = strings.ToLower(checksum)
}
