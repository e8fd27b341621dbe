package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateAttachmentPath checks that a media file path handed in with a post
// submission is a plain local path without directory traversal.
func ValidateAttachmentPath(path string) error {
	if path == "" {
		return fmt.Errorf("attachment path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("attachment path contains directory traversal: %s", path)
	}

	return nil
}

// ValidateStorePath checks that a configured store path stays inside the
// working tree when it is relative. Absolute paths are the operator's choice
// and pass through.
func ValidateStorePath(path string) error {
	if path == "" {
		return fmt.Errorf("store path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) && (cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator))) {
		return fmt.Errorf("store path escapes the working directory: %s", path)
	}

	return nil
}
