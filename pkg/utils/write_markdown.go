package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteMarkdown writes content to dir/name and returns the full path.
func WriteMarkdown(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	// 写入文件
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return path, nil
}
